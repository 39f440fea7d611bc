package cssstyle

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func addLayer(t *testing.T, ss *Stylesheet, css string, origin Origin) LayerID {
	t.Helper()
	id, err := ss.AddFromBuffer([]byte(css), origin, "")
	require.NoError(t, err)
	return id
}

func TestLayerUnload(t *testing.T) {
	ss := NewGrammar().NewStylesheet()
	d1 := addLayer(t, ss, `a { bar: 1; }`, Author)
	d2 := addLayer(t, ss, `a { baz: 2; } b { frob: 3; }`, Author)
	assert.NotEqual(t, d1, d2)

	assert.Equal(t, map[string]string{"bar": "1", "baz": "2"}, ss.QueryType("a").Map())
	assert.Equal(t, map[string]string{"frob": "3"}, ss.QueryType("b").Map())

	require.NoError(t, ss.Unload(d2))
	assert.Equal(t, map[string]string{"bar": "1"}, ss.QueryType("a").Map())
	b := ss.QueryType("b")
	assert.Equal(t, 0, b.Len())
	assert.False(t, b.Matched())
}

func TestUnloadUnknownDescriptor(t *testing.T) {
	ss := NewGrammar().NewStylesheet()
	d1 := addLayer(t, ss, `a { bar: 1; }`, Author)

	err := ss.Unload(d1 + 100)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownDescriptor))
	assert.Len(t, ss.Layers(), 1)

	require.NoError(t, ss.Unload(d1))
	assert.ErrorIs(t, ss.Unload(d1), ErrUnknownDescriptor)
	assert.Empty(t, ss.Layers())
}

func TestLayerIDsNotReused(t *testing.T) {
	ss := NewGrammar().NewStylesheet()
	d1 := addLayer(t, ss, `a { x: 1 }`, Author)
	require.NoError(t, ss.Unload(d1))
	d2 := addLayer(t, ss, `a { x: 1 }`, Author)
	assert.NotEqual(t, d1, d2)
}

func TestAddFromBufferErrors(t *testing.T) {
	ss := NewGrammar().NewStylesheet()
	_, err := ss.AddFromBuffer(nil, Author, "")
	assert.ErrorIs(t, err, ErrEmptyBuffer)
	_, err = ss.AddFromBuffer([]byte{}, Author, "")
	assert.ErrorIs(t, err, ErrEmptyBuffer)
	_, err = ss.AddFromBuffer([]byte("a{}"), Origin(7), "")
	assert.ErrorIs(t, err, ErrInvalidOrigin)
	assert.Empty(t, ss.Layers())
}

func TestAddFromBufferOnlyGarbage(t *testing.T) {
	ss := NewGrammar().NewStylesheet()
	id, err := ss.AddFromBuffer([]byte("}}} not css at all ;;"), User, "")
	require.NoError(t, err)
	layers := ss.Layers()
	require.Len(t, layers, 1)
	assert.Equal(t, id, layers[0].ID)
	assert.Equal(t, User, layers[0].Origin)
	assert.Equal(t, 0, layers[0].Rules)
}

func TestAddFromFile(t *testing.T) {
	dir := t.TempDir()
	fn := filepath.Join(dir, "site.css")
	require.NoError(t, os.WriteFile(fn, []byte(`box { color: red }`), 0o644))

	ss := NewGrammar().NewStylesheet()
	id, err := ss.AddFromFile(fn, Author)
	require.NoError(t, err)
	layers := ss.Layers()
	require.Len(t, layers, 1)
	assert.Equal(t, id, layers[0].ID)
	assert.Equal(t, dir, layers[0].BaseURI)
	assert.Equal(t, fn, layers[0].Source)

	c, ok := ss.QueryType("box").GetColor("color")
	require.True(t, ok)
	assert.Equal(t, "#ff0000", c.String())
}

func TestAddFromFileDirStack(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "css"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "css", "a.css"), []byte(`a { x: 1 }`), 0o644))

	ss := NewGrammar().NewStylesheet()
	ss.PushDir(dir)
	ss.PushDir("css")
	_, err := ss.AddFromFile("a.css", Author)
	require.NoError(t, err)
	ss.PopDir()
	_, err = ss.AddFromFile("a.css", Author)
	require.Error(t, err)
	ss.PopDir()
	ss.PopDir()
}

func TestAddFromFileFinder(t *testing.T) {
	dir := t.TempDir()
	fn := filepath.Join(dir, "found.css")
	require.NoError(t, os.WriteFile(fn, []byte(`a { x: 1 }`), 0o644))

	ss := NewGrammar().NewStylesheet()
	ss.FileFinder = func(name string) (string, error) {
		if name == "logical-name" {
			return fn, nil
		}
		return "", errors.New("not found")
	}
	_, err := ss.AddFromFile("logical-name", Author)
	require.NoError(t, err)
}

func TestAddFromFiles(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.css")
	require.NoError(t, os.WriteFile(good, []byte(`a { x: 1 }`), 0o644))

	ss := NewGrammar().NewStylesheet()
	ids, err := ss.AddFromFiles(User, good, filepath.Join(dir, "missing1.css"), filepath.Join(dir, "missing2.css"))
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 2)
	assert.Len(t, ids, 1)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestNewStylesheetFromBuffer(t *testing.T) {
	g := NewGrammar()
	ss, err := g.NewStylesheetFromBuffer([]byte(`a { x: 1 }`))
	require.NoError(t, err)
	assert.Same(t, g, ss.Grammar())
	layers := ss.Layers()
	require.Len(t, layers, 1)
	assert.Equal(t, Author, layers[0].Origin)

	_, err = g.NewStylesheetFromBuffer(nil)
	assert.ErrorIs(t, err, ErrEmptyBuffer)

	_, err = g.NewStylesheetFromFile(filepath.Join(t.TempDir(), "nope.css"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

// destroyLog records destroyed handle values. Destroy may run on another
// goroutine.
type destroyLog struct {
	mu   sync.Mutex
	vals []string
}

func (d *destroyLog) destroy(v Value) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.vals = append(d.vals, v.String())
}

func (d *destroyLog) values() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.vals)
}

func handleGrammar(dl *destroyLog) *Grammar {
	g := NewGrammar()
	g.AddPropertyTypes(map[string]*PropertyType{
		"handle": {
			Parse: func(raw RawValue, _ *Grammar, _ any) (Value, error) {
				return Custom{Name: "handle", Data: raw.Text}, nil
			},
			Destroy: dl.destroy,
		},
	})
	return g
}

func TestUnloadCallsDestroy(t *testing.T) {
	var dl destroyLog
	ss := handleGrammar(&dl).NewStylesheet()
	d1 := addLayer(t, ss, `a { handle: one } b { handle: two }`, Author)
	d2 := addLayer(t, ss, `a { handle: three }`, Author)

	require.NoError(t, ss.Unload(d1))
	assert.Equal(t, []string{"one", "two"}, dl.values())
	st := ss.QueryType("a")
	assert.Equal(t, "three", st.Map()["handle"])

	ss.Close()
	assert.Equal(t, []string{"one", "two"}, dl.values(), "three is held by st")
	st.Release()
	assert.Equal(t, []string{"one", "two", "three"}, dl.values())
	assert.ErrorIs(t, ss.Unload(d2), ErrUnknownDescriptor)
}

func TestStyleOutlivesUnload(t *testing.T) {
	var dl destroyLog
	ss := handleGrammar(&dl).NewStylesheet()
	d1 := addLayer(t, ss, `box { handle: one }`, Author)

	st := ss.QueryType("box")
	st2 := ss.QueryType("box")
	require.NoError(t, ss.Unload(d1))
	assert.Empty(t, dl.values())

	v, ok := st.Get("handle")
	require.True(t, ok)
	assert.Equal(t, "one", v.String())
	assert.False(t, ss.QueryType("box").Has("handle"))

	st.Release()
	st.Release()
	assert.Empty(t, dl.values(), "st2 still holds the value")
	st2.Release()
	assert.Equal(t, []string{"one"}, dl.values())
}

func TestInlineValuesReleased(t *testing.T) {
	var dl destroyLog
	ss := handleGrammar(&dl).NewStylesheet()
	addLayer(t, ss, `box { handle: rule !important }`, Author)

	n := &NodeFuncs{Type: "box", GetStyle: func() (string, bool) { return "handle: inline", true }}
	st := ss.Query(n)
	assert.Equal(t, "rule", st.Map()["handle"])
	assert.Equal(t, []string{"inline"}, dl.values(), "shadowed inline value is dropped with the query")

	n.GetStyle = func() (string, bool) { return "handle: kept !important", true }
	st2 := ss.Query(n)
	assert.Equal(t, "kept", st2.Map()["handle"])
	assert.Equal(t, []string{"inline"}, dl.values())
	st2.Release()
	assert.Equal(t, []string{"inline", "kept"}, dl.values())
	st.Release()
}

func TestUnloadWaitsForRunningQuery(t *testing.T) {
	var dl destroyLog
	ss := handleGrammar(&dl).NewStylesheet()
	d1 := addLayer(t, ss, `box { handle: one }`, Author)

	done := make(chan struct{})
	unloadedEarly := false
	n := &NodeFuncs{Type: "box"}
	n.GetStyle = func() (string, bool) {
		go func() {
			assert.NoError(t, ss.Unload(d1))
			close(done)
		}()
		select {
		case <-done:
			unloadedEarly = true
		case <-time.After(50 * time.Millisecond):
		}
		return "", false
	}
	st := ss.Query(n)
	<-done
	assert.False(t, unloadedEarly, "unload finished while the query was running")
	assert.Empty(t, ss.Layers())
	assert.Empty(t, dl.values())

	v, ok := st.Get("handle")
	require.True(t, ok)
	assert.Equal(t, "one", v.String())
	st.Release()
	assert.Equal(t, []string{"one"}, dl.values())
}

func TestConcurrentQueryAndUnload(t *testing.T) {
	var dl destroyLog
	ss := handleGrammar(&dl).NewStylesheet()
	addLayer(t, ss, `box { opacity: 0.5 }`, UserAgent)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				st := ss.QueryType("box")
				if o, ok := st.GetDouble("opacity"); !ok || o != 0.5 {
					t.Errorf("opacity = %v, %v, want 0.5", o, ok)
				}
				if v, ok := st.Get("handle"); ok && !strings.HasPrefix(v.String(), "h") {
					t.Errorf("handle = %q", v.String())
				}
				st.Release()
			}
		}()
	}
	for i := range 50 {
		id, err := ss.AddFromBuffer([]byte(fmt.Sprintf("box { handle: h%d }", i)), Author, "")
		require.NoError(t, err)
		require.NoError(t, ss.Unload(id))
	}
	close(stop)
	wg.Wait()

	assert.Len(t, dl.values(), 50)
	assert.Len(t, ss.Layers(), 1)
}

func TestOriginString(t *testing.T) {
	assert.Equal(t, "user-agent", UserAgent.String())
	assert.Equal(t, "user", User.String())
	assert.Equal(t, "author", Author.String())
	assert.Equal(t, "origin(9)", Origin(9).String())
}
