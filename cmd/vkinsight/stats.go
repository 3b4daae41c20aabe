package main

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/VictoriaMetrics/metrics"
	"github.com/docker/go-units"
	"github.com/spf13/cobra"

	"github.com/valkey-insight/vkpack/pkg/insight"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Analyze the key space: per-type counts, memory, largest keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, _, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer c.Close()

		analysis, err := insight.Analyze(cmd.Context(), c)
		if err != nil {
			return err
		}
		printAnalysis(analysis)

		if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
			set := metrics.NewSet()
			insight.PublishMetrics(set, analysis)
			fmt.Printf("serving metrics on http://%s/metrics\n", listen)
			http.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
				set.WritePrometheus(w)
			})
			return http.ListenAndServe(listen, nil)
		}
		return nil
	},
}

func init() {
	statsCmd.Flags().String("listen", "", "keep running and serve the analysis as Prometheus gauges on this address")
}

func printAnalysis(a *insight.Analysis) {
	fmt.Printf("scanned %d keys\n\n", a.Scanned)

	types := make([]string, 0, len(a.TypeStats))
	for keyType := range a.TypeStats {
		types = append(types, keyType)
	}
	sort.Strings(types)
	fmt.Println("by type:")
	for _, keyType := range types {
		stats := a.TypeStats[keyType]
		fmt.Printf("  %-12s %6d keys  %10s\n",
			keyType, stats.Count, units.HumanSize(float64(stats.TotalMemory)))
	}

	if len(a.TopKeys) > 0 {
		fmt.Println("\nlargest keys:")
		for _, key := range a.TopKeys {
			ttl := "no expiry"
			if key.TTL >= 0 {
				ttl = fmt.Sprintf("ttl %ds", key.TTL)
			}
			fmt.Printf("  %10s  %-8s %-10s %s\n",
				units.HumanSize(float64(key.Size)), key.Type, ttl, key.Name)
		}
	}

	b := a.TTLBuckets
	fmt.Println("\nexpiring memory:")
	for _, row := range []struct {
		label string
		size  uint64
	}{
		{"within 1h", b.Hour1},
		{"within 4h", b.Hour4},
		{"within 24h", b.Hour24},
		{"within 48h", b.Hour48},
		{"within 72h", b.Hour72},
		{"within 1w", b.Week1},
		{"within 30d", b.Month1},
		{"later", b.MonthPlus},
	} {
		if row.size > 0 {
			fmt.Printf("  %-10s %10s\n", row.label, units.HumanSize(float64(row.size)))
		}
	}
}
