// Package browser implements the key-space browsing operations:
// cursor-based SCAN listing with pattern and type filters, pipelined
// metadata enrichment, and the single-key maintenance commands.
package browser

import (
	"context"
	"strconv"

	"github.com/pkg/errors"

	"github.com/valkey-insight/vkpack/pkg/valkey"
)

// ScanCount is the COUNT hint per SCAN step.
const ScanCount = 500

// Conn is the slice of the client the browser needs.
type Conn interface {
	Do(ctx context.Context, args ...string) (valkey.Value, error)
	Pipeline(ctx context.Context, commands [][]string) ([]valkey.Value, error)
}

// Page is one SCAN step. Cursor 0 means the iteration is done.
type Page struct {
	Cursor uint64
	Keys   []string
}

// Scan advances the key iteration by one SCAN step. match filters by
// glob pattern, keyType by server-side type; both may be empty.
func Scan(ctx context.Context, c Conn, cursor uint64, match string, keyType valkey.KeyType) (Page, error) {
	args := []string{"SCAN", strconv.FormatUint(cursor, 10)}
	if match != "" {
		args = append(args, "MATCH", match)
	}
	args = append(args, "COUNT", strconv.Itoa(ScanCount))
	if keyType != "" {
		args = append(args, "TYPE", string(keyType))
	}
	res, err := c.Do(ctx, args...)
	if err != nil {
		return Page{}, err
	}
	if err := res.Err(); err != nil {
		return Page{}, err
	}
	if res.Kind != valkey.KindArray || len(res.Elems) != 2 {
		return Page{}, errors.New("unexpected SCAN reply shape")
	}
	next, err := strconv.ParseUint(res.Elems[0].String(), 10, 64)
	if err != nil {
		return Page{}, errors.Wrap(err, "bad SCAN cursor")
	}
	return Page{Cursor: next, Keys: res.Elems[1].Flatten()}, nil
}

// Metadata is the per-key enrichment shown next to each key. TTL
// follows the server convention: -1 no expiry, -2 key gone.
type Metadata struct {
	Type  valkey.KeyType
	Known bool
	TTL   int64
	Size  int64
}

// FetchMetadata pipelines TYPE and TTL for all keys, then sizes for
// the keys whose type is known: MEMORY USAGE for the regular types,
// BF.INFO SIZE for bloom filters.
func FetchMetadata(ctx context.Context, c Conn, keys []string) (map[string]Metadata, error) {
	if len(keys) == 0 {
		return map[string]Metadata{}, nil
	}
	commands := make([][]string, 0, 2*len(keys))
	for _, key := range keys {
		commands = append(commands, []string{"TYPE", key})
	}
	for _, key := range keys {
		commands = append(commands, []string{"TTL", key})
	}
	replies, err := c.Pipeline(ctx, commands)
	if err != nil {
		return nil, errors.Wrap(err, "fetch key metadata")
	}
	types, ttls := replies[:len(keys)], replies[len(keys):]

	out := make(map[string]Metadata, len(keys))
	var sizeCommands [][]string
	var sized []string
	for i, key := range keys {
		kt, known := valkey.ParseKeyType(types[i].String())
		ttl := int64(-2)
		if ttls[i].Kind == valkey.KindInteger {
			ttl = ttls[i].Int
		}
		out[key] = Metadata{Type: kt, Known: known, TTL: ttl, Size: -1}
		if !known {
			continue
		}
		if kt == valkey.TypeBloom {
			sizeCommands = append(sizeCommands, []string{"BF.INFO", key, "SIZE"})
		} else {
			sizeCommands = append(sizeCommands, []string{"MEMORY", "USAGE", key})
		}
		sized = append(sized, key)
	}
	if len(sizeCommands) == 0 {
		return out, nil
	}
	sizes, err := c.Pipeline(ctx, sizeCommands)
	if err != nil {
		return nil, errors.Wrap(err, "fetch key sizes")
	}
	for i, key := range sized {
		if sizes[i].Kind == valkey.KindInteger {
			m := out[key]
			m.Size = sizes[i].Int
			out[key] = m
		}
	}
	return out, nil
}

// Count returns the number of keys in the selected database.
func Count(ctx context.Context, c Conn) (int64, error) {
	res, err := c.Do(ctx, "DBSIZE")
	if err != nil {
		return 0, err
	}
	if res.Kind != valkey.KindInteger {
		return 0, errors.New("unexpected DBSIZE reply")
	}
	return res.Int, nil
}

// Delete removes a key.
func Delete(ctx context.Context, c Conn, key string) error {
	res, err := c.Do(ctx, "DEL", key)
	if err != nil {
		return err
	}
	return res.Err()
}

// Rename renames a key, replacing the target if it exists.
func Rename(ctx context.Context, c Conn, from, to string) error {
	res, err := c.Do(ctx, "RENAME", from, to)
	if err != nil {
		return err
	}
	return res.Err()
}

// Expire sets a TTL in seconds on a key.
func Expire(ctx context.Context, c Conn, key string, seconds int64) error {
	res, err := c.Do(ctx, "EXPIRE", key, strconv.FormatInt(seconds, 10))
	if err != nil {
		return err
	}
	return res.Err()
}
