package pgmock

import (
	"context"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"strings"

	"github.com/edgeflare/pgmock/pkg/client"
	"github.com/edgeflare/pgmock/pkg/httputil"
	"github.com/edgeflare/pgmock/pkg/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var seedCmd = &cobra.Command{
	Use:   "seed FILE...",
	Short: "Insert fixture files into a running mock",
	Long: `Inserts every record of the given YAML or JSON fixture files through the REST API
of a running pgmock (or PostgREST), retrying until the server is reachable`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSeed,
}

func init() {
	f := seedCmd.Flags()
	f.String("url", "http://localhost:8080", "server origin")
	f.Bool("reset", false, "POST /_mock/reset before seeding")
	f.Int("retries", 8, "retries while the server is unreachable")
	f.String("apikey", "", "apikey header sent with every request")
}

func runSeed(cmd *cobra.Command, args []string) error {
	origin, _ := cmd.Flags().GetString("url")
	reset, _ := cmd.Flags().GetBool("reset")
	retries, _ := cmd.Flags().GetInt("retries")
	apikey, _ := cmd.Flags().GetString("apikey")
	origin = strings.TrimRight(origin, "/")

	fx := store.Fixtures{}
	for _, path := range args {
		f, err := store.LoadFixtures(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		for table, recs := range f {
			fx[table] = append(fx[table], recs...)
		}
	}

	ctx := cmd.Context()
	if reset {
		reqCfg := httputil.DefaultRequestConfig(http.MethodPost, origin+"/_mock/reset")
		reqCfg.MaxRetries = retries
		reqCfg.Logger = logger
		if _, err := httputil.Request(ctx, reqCfg, nil); err != nil {
			return fmt.Errorf("reset: %w", err)
		}
	}

	opts := []client.Option{client.WithRetry(retries), client.WithLogger(logger)}
	if apikey != "" {
		opts = append(opts, client.WithHeader("apikey", apikey))
	}
	return seed(ctx, client.New(origin+cfg.Mock.BaseURL, opts...), fx)
}

// seed inserts fx table by table in name order.
func seed(ctx context.Context, c *client.Client, fx store.Fixtures) error {
	for _, table := range slices.Sorted(maps.Keys(fx)) {
		recs := fx[table]
		if len(recs) == 0 {
			continue
		}
		if _, err := c.From(table).Insert(recs).Minimal().Execute(ctx); err != nil {
			return fmt.Errorf("seed %s: %w", table, err)
		}
		logger.Info("seeded", zap.String("table", table), zap.Int("records", len(recs)))
	}
	return nil
}
