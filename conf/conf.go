// Package conf reads particle configurations: a three line header
// ("t = <time>", "b = <Lx> <Ly> <Lz>", "E = <energies>") followed by one
// line per particle whose first three columns are its position.
package conf

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/polyswap/fileio"
)

// Configuration is a snapshot of particle positions.
type Configuration struct {
	Time float64
	Box  r3.Vec
	Pos  []r3.Vec
}

// Read reads a configuration of n particles from path. With n <= 0 every
// non-blank line after the header is a particle.
func Read(path string, n int) (*Configuration, error) {
	f, err := fileio.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening configuration: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	line := 0
	next := func() (string, error) {
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return "", fmt.Errorf("%s:%d: %w", path, line+1, err)
			}
			return "", fmt.Errorf("%s: expected %d particles, file ends at line %d", path, n, line)
		}
		line++
		return sc.Text(), nil
	}

	c := &Configuration{Pos: make([]r3.Vec, 0, max(n, 0))}

	hdr, err := next()
	if err != nil {
		return nil, err
	}
	t, err := headerValues(hdr, "t", 1)
	if err != nil {
		return nil, fmt.Errorf("%s:%d: %w", path, line, err)
	}
	c.Time = t[0]

	hdr, err = next()
	if err != nil {
		return nil, err
	}
	b, err := headerValues(hdr, "b", 3)
	if err != nil {
		return nil, fmt.Errorf("%s:%d: %w", path, line, err)
	}
	c.Box = r3.Vec{X: b[0], Y: b[1], Z: b[2]}

	// energy line, unused
	if _, err := next(); err != nil {
		return nil, err
	}

	for n <= 0 || len(c.Pos) < n {
		var s string
		if n > 0 {
			if s, err = next(); err != nil {
				return nil, err
			}
		} else {
			if !sc.Scan() {
				if err := sc.Err(); err != nil {
					return nil, fmt.Errorf("%s:%d: %w", path, line+1, err)
				}
				break
			}
			line++
			if s = sc.Text(); strings.TrimSpace(s) == "" {
				continue
			}
		}
		p, err := parsePosition(s)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		c.Pos = append(c.Pos, p)
	}
	if len(c.Pos) == 0 {
		return nil, fmt.Errorf("%s: no particles", path)
	}

	return c, nil
}

// parsePosition returns the first three columns of a particle line.
func parsePosition(line string) (r3.Vec, error) {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return r3.Vec{}, fmt.Errorf("expected at least 3 columns, found %d", len(fields))
	}
	var xyz [3]float64
	for k := range xyz {
		v, err := strconv.ParseFloat(fields[k], 64)
		if err != nil {
			return r3.Vec{}, err
		}
		xyz[k] = v
	}
	return r3.Vec{X: xyz[0], Y: xyz[1], Z: xyz[2]}, nil
}

// headerValues parses "<key> = v1 v2 ..." and returns the first want values.
func headerValues(line, key string, want int) ([]float64, error) {
	lhs, rhs, ok := strings.Cut(line, "=")
	if !ok || strings.TrimSpace(lhs) != key {
		return nil, fmt.Errorf("expected %q header, found %q", key+" = ...", line)
	}
	fields := strings.Fields(rhs)
	if len(fields) < want {
		return nil, fmt.Errorf("%q header needs %d values, found %d", key, want, len(fields))
	}
	vals := make([]float64, want)
	for i := range vals {
		v, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return nil, fmt.Errorf("%q header: %w", key, err)
		}
		vals[i] = v
	}
	return vals, nil
}
