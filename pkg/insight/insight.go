// Package insight collects server statistics and runs the bounded
// key-space analysis behind the insights view: INFO, DBSIZE and
// CLIENT LIST flattened into a stats map, plus a SCAN sweep that
// aggregates per-type counts, memory totals, TTL buckets and the
// largest keys.
package insight

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/VictoriaMetrics/metrics"
	"github.com/pkg/errors"

	"github.com/valkey-insight/vkpack/pkg/valkey"
)

const (
	// scanCount is the COUNT hint per analysis SCAN step; smaller than
	// the browser's to keep the sweep responsive.
	scanCount = 100
	// maxKeysToAnalyze bounds the sweep on large databases.
	maxKeysToAnalyze = 10000
	// topKeys is how many of the largest keys the analysis keeps.
	topKeys = 20
)

// Conn is the slice of the client the collectors need.
type Conn interface {
	Do(ctx context.Context, args ...string) (valkey.Value, error)
	Pipeline(ctx context.Context, commands [][]string) ([]valkey.Value, error)
}

// ParseInfo flattens an INFO reply into key/value pairs. Section
// headers and blank lines are dropped.
func ParseInfo(text string) map[string]string {
	stats := make(map[string]string)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if key, value, ok := strings.Cut(line, ":"); ok {
			stats[key] = strings.TrimSpace(value)
		}
	}
	return stats
}

// FetchStats gathers the stats map the insights view renders: every
// INFO field, "dbsize", and "connected_clients_count" derived from
// CLIENT LIST.
func FetchStats(ctx context.Context, c Conn) (map[string]string, error) {
	info, err := c.Do(ctx, "INFO")
	if err != nil {
		return nil, errors.Wrap(err, "INFO")
	}
	stats := ParseInfo(info.String())

	if dbsize, err := c.Do(ctx, "DBSIZE"); err == nil && dbsize.Kind == valkey.KindInteger {
		stats["dbsize"] = strconv.FormatInt(dbsize.Int, 10)
	}
	if list, err := c.Do(ctx, "CLIENT", "LIST"); err == nil {
		count := 0
		for _, line := range strings.Split(list.String(), "\n") {
			if strings.TrimSpace(line) != "" {
				count++
			}
		}
		stats["connected_clients_count"] = strconv.Itoa(count)
	}
	return stats, nil
}

// KeyInfo is one key in the analysis result. TTL follows the server
// convention: -1 no expiry, -2 key gone.
type KeyInfo struct {
	Name string
	Type string
	Size uint64
	TTL  int64
}

// TypeStats aggregates one key type.
type TypeStats struct {
	Count       int
	TotalMemory uint64
}

// TTLBuckets splits expiring memory by time to expiry.
type TTLBuckets struct {
	Hour1     uint64
	Hour4     uint64
	Hour24    uint64
	Hour48    uint64
	Hour72    uint64
	Week1     uint64
	Month1    uint64
	MonthPlus uint64
}

func (b *TTLBuckets) add(ttl int64, size uint64) {
	if ttl <= 0 {
		return
	}
	switch {
	case ttl <= 3600:
		b.Hour1 += size
	case ttl <= 14400:
		b.Hour4 += size
	case ttl <= 86400:
		b.Hour24 += size
	case ttl <= 172800:
		b.Hour48 += size
	case ttl <= 259200:
		b.Hour72 += size
	case ttl <= 604800:
		b.Week1 += size
	case ttl <= 2592000:
		b.Month1 += size
	default:
		b.MonthPlus += size
	}
}

// Analysis is the result of one key-space sweep.
type Analysis struct {
	TypeStats  map[string]TypeStats
	TopKeys    []KeyInfo
	TTLBuckets TTLBuckets
	Scanned    int
}

// Analyze sweeps the key space with SCAN, enriching each page with
// pipelined TYPE, TTL and MEMORY USAGE, until the cursor wraps or the
// scan cap is hit.
func Analyze(ctx context.Context, c Conn) (*Analysis, error) {
	a := &Analysis{TypeStats: make(map[string]TypeStats)}
	var all []KeyInfo
	cursor := uint64(0)

	for a.Scanned < maxKeysToAnalyze {
		res, err := c.Do(ctx, "SCAN", strconv.FormatUint(cursor, 10), "COUNT", strconv.Itoa(scanCount))
		if err != nil {
			return nil, errors.Wrap(err, "SCAN")
		}
		if res.Kind != valkey.KindArray || len(res.Elems) != 2 {
			return nil, errors.New("unexpected SCAN reply shape")
		}
		cursor, err = strconv.ParseUint(res.Elems[0].String(), 10, 64)
		if err != nil {
			return nil, errors.Wrap(err, "bad SCAN cursor")
		}
		keys := res.Elems[1].Flatten()

		if len(keys) > 0 {
			page, err := analyzePage(ctx, c, keys)
			if err != nil {
				return nil, err
			}
			for _, info := range page {
				stats := a.TypeStats[info.Type]
				stats.Count++
				stats.TotalMemory += info.Size
				a.TypeStats[info.Type] = stats
				a.TTLBuckets.add(info.TTL, info.Size)
			}
			all = append(all, page...)
			a.Scanned += len(keys)
		}
		if cursor == 0 {
			break
		}
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].Size != all[j].Size {
			return all[i].Size > all[j].Size
		}
		return all[i].Name < all[j].Name
	})
	if len(all) > topKeys {
		all = all[:topKeys]
	}
	a.TopKeys = all
	return a, nil
}

func analyzePage(ctx context.Context, c Conn, keys []string) ([]KeyInfo, error) {
	commands := make([][]string, 0, 3*len(keys))
	for _, key := range keys {
		commands = append(commands, []string{"TYPE", key})
	}
	for _, key := range keys {
		commands = append(commands, []string{"TTL", key})
	}
	for _, key := range keys {
		commands = append(commands, []string{"MEMORY", "USAGE", key})
	}
	replies, err := c.Pipeline(ctx, commands)
	if err != nil {
		return nil, errors.Wrap(err, "enrich analysis page")
	}
	types := replies[:len(keys)]
	ttls := replies[len(keys) : 2*len(keys)]
	sizes := replies[2*len(keys):]

	page := make([]KeyInfo, 0, len(keys))
	for i, key := range keys {
		info := KeyInfo{Name: key, Type: "string", TTL: -1}
		if t := types[i].String(); t != "" {
			info.Type = t
		}
		if ttls[i].Kind == valkey.KindInteger {
			info.TTL = ttls[i].Int
		}
		if sizes[i].Kind == valkey.KindInteger && sizes[i].Int > 0 {
			info.Size = uint64(sizes[i].Int)
		}
		page = append(page, info)
	}
	return page, nil
}

// PublishMetrics exposes the analysis through gauges so a metrics
// scrape of the process can read the last sweep.
func PublishMetrics(set *metrics.Set, a *Analysis) {
	for keyType, stats := range a.TypeStats {
		stats := stats
		set.GetOrCreateGauge(
			fmt.Sprintf(`vkinsight_keys_total{type=%q}`, keyType),
			func() float64 { return float64(stats.Count) },
		)
		set.GetOrCreateGauge(
			fmt.Sprintf(`vkinsight_keys_memory_bytes{type=%q}`, keyType),
			func() float64 { return float64(stats.TotalMemory) },
		)
	}
	scanned := a.Scanned
	set.GetOrCreateGauge("vkinsight_keys_scanned", func() float64 { return float64(scanned) })
}
