// Package envfile is a minimal KEY=value .env file reader, used as a
// go-simpler.org/env.Options.Source when a .env file overrides the
// process environment.
package envfile

import (
	"bufio"
	"os"
	"strings"
)

// Env is a flat key/value map satisfying go-simpler.org/env's Source
// interface (a Getenv(key string) string method).
type Env map[string]string

// Getenv looks up key, returning "" if absent — matching os.Getenv's
// contract so it can stand in as an env.Options.Source.
func (e Env) Getenv(key string) string { return e[key] }

// GetEnv reads a KEY=value file, one assignment per line. Blank lines and
// lines starting with '#' are skipped. Values are not further unquoted.
func GetEnv(path string) (Env, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	out := Env{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx := strings.IndexByte(line, '=')
		if idx < 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		val := strings.TrimSpace(line[idx+1:])
		val = strings.Trim(val, `"'`)
		out[key] = val
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
