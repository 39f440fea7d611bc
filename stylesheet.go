package cssstyle

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Origin is the provenance of a layer. Author layers beat user layers which
// beat user agent layers, regardless of specificity.
type Origin int

// Origins in increasing precedence.
const (
	UserAgent Origin = iota
	User
	Author
)

func (o Origin) String() string {
	switch o {
	case UserAgent:
		return "user-agent"
	case User:
		return "user"
	case Author:
		return "author"
	}
	return fmt.Sprintf("origin(%d)", int(o))
}

func (o Origin) valid() bool {
	return o >= UserAgent && o <= Author
}

// LayerID identifies a layer of a stylesheet. IDs are never reused.
type LayerID int

// Errors returned by Stylesheet.
var (
	ErrUnknownDescriptor = errors.New("cssstyle: unknown layer descriptor")
	ErrEmptyBuffer       = errors.New("cssstyle: empty stylesheet buffer")
	ErrInvalidOrigin     = errors.New("cssstyle: invalid origin")
)

// rule is a selector list with its declarations.
type rule struct {
	selectors []*Selector
	decls     []*declaration
	index     int
}

// matches returns the highest specificity of the selectors matching v.
func (r *rule) matches(v *nodeView) (bool, Specificity) {
	var (
		best  Specificity
		found bool
	)
	for _, sel := range r.selectors {
		if sel.match(v) {
			if sp := sel.Specificity(); !found || best.Less(sp) {
				best = sp
			}
			found = true
		}
	}
	return found, best
}

type layer struct {
	id        LayerID
	origin    Origin
	rules     []*rule
	loadIndex int
	baseURI   string
	source    string
}

// LayerInfo describes a loaded layer.
type LayerInfo struct {
	ID      LayerID
	Origin  Origin
	Rules   int
	BaseURI string
	Source  string
}

// Stylesheet is an ordered set of rule layers. Layers can be added and
// unloaded at any time; queries see a consistent set of layers.
type Stylesheet struct {
	// FileFinder, if set, is asked first to locate files given to AddFromFile.
	FileFinder func(string) (string, error)

	grammar  *Grammar
	mu       sync.RWMutex
	layers   []*layer
	lastID   LayerID
	loads    int
	dirstack []string
}

// Grammar returns the grammar the stylesheet is bound to.
func (ss *Stylesheet) Grammar() *Grammar {
	return ss.grammar
}

// PushDir adds a directory to the dir stack. Relative file names given to
// AddFromFile are resolved against the top entry.
func (ss *Stylesheet) PushDir(dir string) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if filepath.IsAbs(dir) || len(ss.dirstack) == 0 {
		ss.dirstack = append(ss.dirstack, dir)
		return
	}
	ss.dirstack = append(ss.dirstack, filepath.Join(ss.dirstack[len(ss.dirstack)-1], dir))
}

// PopDir removes the last entry from the dir stack.
func (ss *Stylesheet) PopDir() {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if len(ss.dirstack) > 0 {
		ss.dirstack = ss.dirstack[:len(ss.dirstack)-1]
	}
}

// findFile returns the location of the file. FileFinder is consulted first,
// then relative names are prefixed with the top of the dir stack.
func (ss *Stylesheet) findFile(filename string) string {
	if ss.FileFinder != nil {
		if loc, err := ss.FileFinder(filename); loc != "" && err == nil {
			return loc
		}
	}
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	if len(ss.dirstack) == 0 || filepath.IsAbs(filename) {
		return filename
	}
	return filepath.Join(ss.dirstack[len(ss.dirstack)-1], filename)
}

// AddFromBuffer parses buf into a new layer and returns its descriptor.
// Malformed rules and declarations are skipped; the call only fails for an
// empty buffer or an invalid origin.
func (ss *Stylesheet) AddFromBuffer(buf []byte, origin Origin, baseURI string) (LayerID, error) {
	if len(buf) == 0 {
		return 0, ErrEmptyBuffer
	}
	return ss.add(string(buf), origin, baseURI, "buffer")
}

// AddFromFile reads and parses a file into a new layer. The directory of the
// file is the base URI of the layer.
func (ss *Stylesheet) AddFromFile(path string, origin Origin) (LayerID, error) {
	if !origin.valid() {
		return 0, ErrInvalidOrigin
	}
	loc := ss.findFile(path)
	data, err := readFile(loc)
	if err != nil {
		return 0, err
	}
	return ss.add(string(data), origin, filepath.Dir(loc), loc)
}

// AddFromFiles loads several files with the same origin. It returns the
// descriptors of the files that could be loaded together with all errors.
func (ss *Stylesheet) AddFromFiles(origin Origin, paths ...string) ([]LayerID, error) {
	var (
		ids  []LayerID
		errs error
	)
	for _, p := range paths {
		id, err := ss.AddFromFile(p, origin)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		ids = append(ids, id)
	}
	return ids, errs
}

func (ss *Stylesheet) add(src string, origin Origin, baseURI, source string) (LayerID, error) {
	if !origin.valid() {
		return 0, ErrInvalidOrigin
	}
	rules := ss.grammar.compile(src, baseURI)
	ss.mu.Lock()
	ss.lastID++
	ss.loads++
	l := &layer{
		id:        ss.lastID,
		origin:    origin,
		rules:     rules,
		loadIndex: ss.loads,
		baseURI:   baseURI,
		source:    source,
	}
	ss.layers = append(ss.layers, l)
	ss.mu.Unlock()
	ss.grammar.log.Debug("layer added",
		zap.Int("layer", int(l.id)),
		zap.Stringer("origin", origin),
		zap.String("source", source),
		zap.Int("rules", len(rules)))
	return l.id, nil
}

// Unload removes the layer with the given descriptor. The other layers are
// not affected. Unload waits for running queries to finish.
func (ss *Stylesheet) Unload(id LayerID) error {
	ss.mu.Lock()
	i := slices.IndexFunc(ss.layers, func(l *layer) bool { return l.id == id })
	if i < 0 {
		ss.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrUnknownDescriptor, id)
	}
	l := ss.layers[i]
	ss.layers = slices.Delete(ss.layers, i, i+1)
	ss.mu.Unlock()
	destroyLayer(l)
	ss.grammar.log.Debug("layer unloaded", zap.Int("layer", int(id)))
	return nil
}

// Close unloads all layers.
func (ss *Stylesheet) Close() {
	ss.mu.Lock()
	layers := ss.layers
	ss.layers = nil
	ss.mu.Unlock()
	for _, l := range layers {
		destroyLayer(l)
	}
}

// destroyLayer drops the layer's hold on its values. Values still held by a
// Style survive until that Style is released.
func destroyLayer(l *layer) {
	for _, r := range l.rules {
		for _, d := range r.decls {
			d.owner.release()
		}
	}
}

// Layers returns information about the live layers in load order.
func (ss *Stylesheet) Layers() []LayerInfo {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	infos := make([]LayerInfo, len(ss.layers))
	for i, l := range ss.layers {
		infos[i] = LayerInfo{ID: l.id, Origin: l.origin, Rules: len(l.rules), BaseURI: l.baseURI, Source: l.source}
	}
	return infos
}
