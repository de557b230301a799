package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fleetlink/driverd/config"
)

var demoSeverity string

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Trigger a demo alert on a running session",
	RunE:  runDemo,
}

func init() {
	demoCmd.Flags().StringVarP(&demoSeverity, "severity", "s", "HIGH", "alert severity (MEDIUM or HIGH)")
	rootCmd.AddCommand(demoCmd)
}

func runDemo(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	body, err := json.Marshal(map[string]string{"severity": strings.ToUpper(demoSeverity)})
	if err != nil {
		return err
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Post("http://"+cfg.API.Addr+"/api/fleet/demo-alert", "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("is the session running? %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("demo alert rejected (%d): %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var out map[string]string
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	fmt.Println(out["incident_id"])
	return nil
}
