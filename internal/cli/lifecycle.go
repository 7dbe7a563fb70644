package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cagehq/cage/internal/process"
	"github.com/cagehq/cage/internal/server"
)

func init() {
	rootCmd.AddCommand(serverCmd, startCmd, stopCmd, statusCmd)
}

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the collector in the foreground",
	RunE: func(cmd *cobra.Command, args []string) error {
		loader, err := loadConfig()
		if err != nil {
			return err
		}
		return server.Run(loader)
	},
}

var startCmd = &cobra.Command{
	Use:          "start",
	Short:        "Start the collector as a background process",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		loader, err := loadConfig()
		if err != nil {
			return err
		}
		cfg := loader.Config()

		mgr := process.NewManager(cfg.Storage.CageDir)
		spawnArgs := []string{"server"}
		if cfgPath != "" {
			spawnArgs = append(spawnArgs, "--config", cfgPath)
		}
		if err := mgr.Start(spawnArgs...); err != nil {
			return err
		}
		fmt.Printf("collector listening on %s\n", cfg.BaseURL())
		return nil
	},
}

var stopCmd = &cobra.Command{
	Use:          "stop",
	Short:        "Stop the background collector",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		loader, err := loadConfig()
		if err != nil {
			return err
		}
		mgr := process.NewManager(loader.Config().Storage.CageDir)
		if err := mgr.Stop(); err != nil {
			return err
		}
		fmt.Println("collector stopped")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:          "status",
	Short:        "Report whether the collector is running",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		loader, err := loadConfig()
		if err != nil {
			return err
		}
		mgr := process.NewManager(loader.Config().Storage.CageDir)
		st, err := mgr.Status()
		if err != nil {
			return err
		}
		switch {
		case st.Running:
			fmt.Printf("running (pid %d, started %s)\n", st.Record.PID, st.Record.StartTime)
		case st.Stale:
			fmt.Printf("not running (stale record for pid %d)\n", st.Record.PID)
		default:
			fmt.Println("not running")
		}
		return nil
	},
}
