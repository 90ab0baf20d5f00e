package topology

import (
	"bufio"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/pthm-cable/polyswap/fileio"
)

// maxLineSize bounds a single line of topology or bond input.
const maxLineSize = 1 << 20

// Loader reads a topology file and its companion bond-list file.
// A Loader is not safe for concurrent use and must finish before any pair
// evaluation starts.
type Loader struct {
	BondFile string
	// OnlyLinks means the bond file holds the bond lines only. Otherwise
	// two header lines and one position line per particle precede them.
	OnlyLinks bool
}

// Load builds the topology of n particles.
func (l *Loader) Load(n int, topologyPath string) (*Topology, error) {
	sticky, err := readSticky(topologyPath, n)
	if err != nil {
		return nil, err
	}
	slog.Info("sticky particles found in the topology", "count", len(sticky))

	t := New(n)
	for i := range sticky {
		t.Particles[i].Chemistry = Sticky
	}

	if err := l.readBonds(t); err != nil {
		return nil, err
	}
	if err := t.Validate(); err != nil {
		return nil, &FormatError{Path: l.BondFile, Msg: "inconsistent bond graph", Err: err}
	}

	slog.Info("bond graph loaded", "particles", n, "bonds", len(t.Bonds()), "clusters", t.Clusters())
	return t, nil
}

func readSticky(path string, n int) (map[int]struct{}, error) {
	f, err := fileio.Open(path)
	if err != nil {
		return nil, &FormatError{Path: path, Msg: "can't read topology file", Err: err}
	}
	defer f.Close()

	lr := newLineReader(f)
	if _, ok := lr.next(); !ok {
		if lr.err() != nil {
			return nil, &FormatError{Path: path, Msg: "can't read topology file", Err: lr.err()}
		}
		return nil, &FormatError{Path: path, Line: 1, Msg: "missing header line"}
	}

	var parts []string
	for {
		line, ok := lr.next()
		if !ok {
			break
		}
		if strings.TrimSpace(line) != "" {
			parts = append(parts, line)
		}
	}
	if lr.err() != nil {
		return nil, &FormatError{Path: path, Line: lr.line, Msg: "can't read topology file", Err: lr.err()}
	}

	sticky, err := ParseIndices(strings.Join(parts, ","), n)
	if err != nil {
		return nil, &FormatError{Path: path, Msg: "invalid sticky particle list", Err: err}
	}
	return sticky, nil
}

func (l *Loader) readBonds(t *Topology) error {
	path := l.BondFile
	f, err := fileio.Open(path)
	if err != nil {
		return &FormatError{Path: path, Msg: "can't read bond file", Err: err}
	}
	defer f.Close()

	n := t.Len()
	lr := newLineReader(f)
	fail := func(msg string, err error) error {
		if err == nil {
			err = lr.err()
		}
		return &FormatError{Path: path, Line: lr.line, Msg: msg, Err: err}
	}

	if !l.OnlyLinks {
		for i := 0; i < n+2; i++ {
			if _, ok := lr.next(); !ok {
				return fail("the bond file does not contain the right number of lines", nil)
			}
		}
	}

	for i := 0; i < n; i++ {
		line, ok := lr.next()
		if !ok {
			return fail("missing bond line for particle "+strconv.Itoa(i), nil)
		}

		fields := strings.Fields(line)
		var countField string
		switch len(fields) {
		case 1:
			countField = fields[0]
		case 2:
			idx, err := strconv.Atoi(fields[0])
			if err != nil {
				return fail("invalid particle index", err)
			}
			if idx-1 != i {
				return &FormatError{Path: path, Line: lr.line, Mismatch: true, Expected: i, Found: idx - 1}
			}
			countField = fields[1]
		default:
			return fail("expected '<index> <bonds>' or '<bonds>', found "+strconv.Quote(line), nil)
		}

		nBonds, err := strconv.Atoi(countField)
		if err != nil || nBonds < 0 {
			return fail("invalid bond count "+strconv.Quote(countField), err)
		}
		if nBonds > n-1 {
			return fail("particle "+strconv.Itoa(i)+" declares "+countField+" bonds, at most "+strconv.Itoa(n-1)+" are possible", nil)
		}

		p := &t.Particles[i]
		p.Multiplicity = nBonds
		p.StrandID = 0

		neighs, err := lr.ints(nBonds)
		if err != nil {
			return fail("reading bonded neighbors of particle "+strconv.Itoa(i), err)
		}
		for _, q := range neighs {
			q--
			if q < 0 || q >= n {
				return fail("bonded neighbor "+strconv.Itoa(q+1)+" out of range", nil)
			}
			if q == i {
				return fail("particle "+strconv.Itoa(i)+" is bonded to itself", nil)
			}
			t.AddBond(i, q)
		}
	}
	return nil
}

// lineReader reads lines while tracking the 1-based line number.
type lineReader struct {
	sc   *bufio.Scanner
	line int
}

func newLineReader(r io.Reader) *lineReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &lineReader{sc: sc}
}

func (lr *lineReader) next() (string, bool) {
	if !lr.sc.Scan() {
		return "", false
	}
	lr.line++
	return lr.sc.Text(), true
}

func (lr *lineReader) err() error {
	return lr.sc.Err()
}

// ints reads exactly k integers from the following lines. The last line
// consumed must not carry extra tokens.
func (lr *lineReader) ints(k int) ([]int, error) {
	var out []int
	for len(out) < k {
		line, ok := lr.next()
		if !ok {
			if lr.err() != nil {
				return nil, lr.err()
			}
			return nil, io.ErrUnexpectedEOF
		}
		fields := strings.Fields(line)
		if len(out)+len(fields) > k {
			return nil, errExtraTokens
		}
		for _, f := range fields {
			v, err := strconv.Atoi(f)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
	}
	return out, nil
}
