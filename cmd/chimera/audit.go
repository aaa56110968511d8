package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/chimera/internal/audit"
	"github.com/mohammad-safakhou/chimera/internal/runtime"
)

func auditCMD() *cobra.Command {
	var n int64
	tail := &cobra.Command{
		Use:   "audit",
		Short: "Print the newest capability audit records",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			rdb, err := runtime.OpenRedis(cmd.Context(), cfg.Storage.Redis)
			if err != nil {
				return err
			}
			if rdb == nil {
				return fmt.Errorf("audit stream needs storage.redis.host")
			}
			defer rdb.Close()

			msgs, err := audit.Tail(cmd.Context(), rdb, cfg.Audit.Stream, n)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, m := range msgs {
				if err := enc.Encode(m.Envelope); err != nil {
					return err
				}
			}
			return nil
		},
	}
	tail.Flags().Int64VarP(&n, "n", "n", 20, "number of records")
	return tail
}
