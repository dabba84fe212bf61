// -- cmd/fill.go --
package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/autoform/internal/browser"
	"github.com/xkilldash9x/autoform/internal/discovery"
	"github.com/xkilldash9x/autoform/internal/dropdown"
	"github.com/xkilldash9x/autoform/internal/events"
	"github.com/xkilldash9x/autoform/internal/mapping"
	"github.com/xkilldash9x/autoform/internal/observability"
	"github.com/xkilldash9x/autoform/internal/oracle"
	"github.com/xkilldash9x/autoform/internal/orchestrator"
	"github.com/xkilldash9x/autoform/internal/profile"
)

// newFillCmd creates and configures the `fill` command.
func newFillCmd() *cobra.Command {
	fillCmd := &cobra.Command{
		Use:   "fill [urls...]",
		Short: "Fills forms on the given URLs using a stored profile",
		Args:  cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind flags so they override config file and env values.
			if err := viper.BindPFlag("profiles.default", cmd.Flags().Lookup("profile")); err != nil {
				return err
			}
			if err := viper.BindPFlag("mappings.dir", cmd.Flags().Lookup("mappings-dir")); err != nil {
				return err
			}
			return viper.BindPFlag("browser.headless", cmd.Flags().Lookup("headless"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()
			cfg := appCfg

			if cfg.Oracle.APIKey == "" {
				return fmt.Errorf("no oracle API key configured; set AUTOFORM_ORACLE_API_KEY or oracle.api_key")
			}

			// 1. Data stores.
			mappingStore := mapping.NewStore(logger)
			if err := mappingStore.Load(cfg.Mappings.Dir); err != nil {
				return fmt.Errorf("loading site mappings: %w", err)
			}
			profileStore := profile.NewStore(logger)
			if err := profileStore.Load(cfg.Profiles.Dir); err != nil {
				return fmt.Errorf("loading profiles: %w", err)
			}
			prof, err := profileStore.Get(cfg.Profiles.Default)
			if err != nil {
				return err
			}

			// 2. Browser.
			manager := browser.NewManager(cfg.Browser, logger)
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
				defer cancel()
				if err := manager.Shutdown(shutdownCtx); err != nil {
					logger.Warn("Browser shutdown incomplete", zap.Error(err))
				}
			}()

			page, err := manager.NewPage(ctx)
			if err != nil {
				return fmt.Errorf("launching browser: %w", err)
			}

			// 3. Oracle.
			llm, err := oracle.NewClient(cfg.Oracle)
			if err != nil {
				return err
			}
			advisor := oracle.New(llm, cfg.Oracle, logger)

			// 4. Resolution and interaction components.
			discoverer := discovery.New(page, logger)
			resolver := mapping.NewResolver(mappingStore, discoverer, logger)

			broadcaster := events.NewBroadcaster(logger, 64)
			defer broadcaster.Close()
			progressCh, unsubscribe := broadcaster.Subscribe()
			defer unsubscribe()
			done := make(chan struct{})
			go func() {
				defer close(done)
				for ev := range progressCh {
					fmt.Printf("[%s] %-7s %s\n", ev.Timestamp.Format("15:04:05"), ev.Level, ev.Message)
				}
			}()

			engine := dropdown.NewEngine(page, advisor, broadcaster, logger)
			validator := dropdown.NewValidator(page, advisor, cfg.Run.SelectionAttempts, logger)

			orch, err := orchestrator.New(page, resolver, engine, validator, broadcaster, cfg.Run, logger)
			if err != nil {
				return err
			}

			// 5. Run.
			handle, runErr := orch.Run(ctx, args, prof)

			broadcaster.Close()
			<-done
			printSummary(handle)

			return runErr
		},
	}

	fillCmd.Flags().StringP("profile", "p", "", "profile name to fill with")
	fillCmd.Flags().String("mappings-dir", "", "directory of site mapping documents")
	fillCmd.Flags().Bool("headless", true, "run the browser headless")
	return fillCmd
}

func printSummary(handle *orchestrator.RunHandle) {
	state := handle.Snapshot()
	fmt.Printf("\nRun %s\n", state.ID)
	for _, s := range state.Summaries {
		if s.Error != "" {
			fmt.Printf("  %s: failed (%s)\n", s.URL, s.Error)
			continue
		}
		fmt.Printf("  %s: %d/%d fields filled (%d skipped, %d failed)\n",
			s.URL, s.Filled, s.Total, s.Skipped, s.Failed)
	}
}
