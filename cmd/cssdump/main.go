package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/PuerkitoBio/goquery"
	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/boxesandglue/cssstyle"
	"github.com/boxesandglue/cssstyle/htmlnode"
)

type env struct {
	log     *zap.Logger
	grammar *cssstyle.Grammar
	styler  *htmlnode.Styler
}

type envKey struct{}

func envFromContext(ctx context.Context) *env {
	if e, ok := ctx.Value(envKey{}).(*env); ok {
		return e
	}
	return &env{log: zap.NewNop()}
}

// prepare builds the grammar and loads the stylesheets given on the command
// line.
func prepare(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	e := &env{log: zap.NewNop()}
	if cmd.Bool("debug") {
		log, err := zap.NewDevelopment()
		if err != nil {
			return ctx, fmt.Errorf("unable to prepare logs: %w", err)
		}
		e.log = log
	}
	e.grammar = cssstyle.NewRenderingGrammar(cssstyle.WithLogger(e.log))
	e.styler = htmlnode.NewStyler(e.grammar)
	ss := e.styler.Stylesheet

	var errs error
	if cmd.Bool("defaults") {
		if _, err := ss.AddFromBuffer([]byte(htmlnode.CSSdefaults), cssstyle.UserAgent, ""); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	for _, o := range []struct {
		flag   string
		origin cssstyle.Origin
	}{{"ua", cssstyle.UserAgent}, {"user", cssstyle.User}, {"author", cssstyle.Author}} {
		if _, err := ss.AddFromFiles(o.origin, cmd.StringSlice(o.flag)...); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	e.log.Debug("Stylesheets loaded", zap.Int("layers", len(ss.Layers())))
	return context.WithValue(ctx, envKey{}, e), errs
}

func finish(ctx context.Context, _ *cli.Command) error {
	e := envFromContext(ctx)
	if e.styler != nil {
		e.styler.Stylesheet.Close()
	}
	// stderr sync errors are expected on some terminals
	_ = e.log.Sync()
	return nil
}

func output(styles yaml.Marshaler) error {
	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	if err := enc.Encode(styles); err != nil {
		return fmt.Errorf("unable to write output: %w", err)
	}
	return enc.Close()
}

// styleDump is the YAML form of resolved styles in query order.
type styleDump struct {
	names  []string
	styles []*cssstyle.Style
}

func (d *styleDump) add(name string, st *cssstyle.Style) {
	d.names = append(d.names, name)
	d.styles = append(d.styles, st)
}

func (d *styleDump) MarshalYAML() (any, error) {
	root := &yaml.Node{Kind: yaml.MappingNode}
	for i, name := range d.names {
		props := &yaml.Node{Kind: yaml.MappingNode}
		st := d.styles[i]
		m := st.Map()
		for _, p := range st.Names() {
			props.Content = append(props.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Value: p},
				&yaml.Node{Kind: yaml.ScalarNode, Value: m[p]})
		}
		root.Content = append(root.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: name}, props)
	}
	return root, nil
}

func runTypes(ctx context.Context, cmd *cli.Command) error {
	e := envFromContext(ctx)
	if cmd.NArg() == 0 {
		return errors.New("no type names given")
	}
	if cmd.Bool("tree") {
		fmt.Fprint(os.Stdout, e.styler.Stylesheet.Dump())
	}
	var d styleDump
	for _, t := range cmd.Args().Slice() {
		d.add(t, e.styler.Stylesheet.QueryType(t))
	}
	return output(&d)
}

func elementPath(sel *goquery.Selection) string {
	var parts []string
	for s := sel; s.Length() > 0; s = s.Parent() {
		name := goquery.NodeName(s)
		if name == "#document" {
			break
		}
		if id, ok := s.Attr("id"); ok {
			name += "#" + id
		} else if s.Parent().Length() > 0 {
			name += fmt.Sprintf(":%d", s.Index()+1)
		}
		parts = append([]string{name}, parts...)
	}
	return strings.Join(parts, " > ")
}

func runHTML(ctx context.Context, cmd *cli.Command) error {
	e := envFromContext(ctx)
	src := cmd.Args().Get(0)
	if src == "" {
		return errors.New("no HTML file given")
	}
	if cmd.Args().Len() > 1 {
		e.log.Warn("Too many arguments", zap.Strings("ignoring", cmd.Args().Slice()[1:]))
	}
	doc, err := e.styler.ProcessHTMLFile(src)
	if err != nil {
		return err
	}
	if cmd.Bool("tree") {
		fmt.Fprint(os.Stdout, e.styler.Stylesheet.Dump())
	}
	sel := doc.Find("*")
	if s := cmd.String("select"); s != "" {
		sel = doc.Find(s)
	}
	var d styleDump
	sel.Each(func(_ int, el *goquery.Selection) {
		st := e.styler.Style(el.Get(0))
		if st.Len() == 0 && !cmd.Bool("all") {
			return
		}
		d.add(elementPath(el), st)
	})
	return output(&d)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	app := &cli.Command{
		Name:            "cssdump",
		Usage:           "resolves CSS styles and dumps them as YAML",
		HideHelpCommand: true,
		Before:          prepare,
		After:           finish,
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "ua", Usage: "load user agent stylesheet `FILE`"},
			&cli.StringSliceFlag{Name: "user", Usage: "load user stylesheet `FILE`"},
			&cli.StringSliceFlag{Name: "author", Aliases: []string{"a"}, Usage: "load author stylesheet `FILE`"},
			&cli.BoolFlag{Name: "defaults", Usage: "load the built-in HTML defaults as user agent stylesheet"},
			&cli.BoolFlag{Name: "tree", Aliases: []string{"t"}, Usage: "print the loaded layers before the styles"},
			&cli.BoolFlag{Name: "debug", Aliases: []string{"d"}, Usage: "log parser diagnostics to stderr"},
		},
		Commands: []*cli.Command{
			{
				Name:      "types",
				Usage:     "Resolves the styles of nodes that have only a type name",
				ArgsUsage: "TYPE...",
				Action:    runTypes,
			},
			{
				Name:      "html",
				Usage:     "Resolves the styles of the elements of an HTML file",
				ArgsUsage: "FILE",
				Action:    runHTML,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "select", Aliases: []string{"s"}, Usage: "only dump elements matching `SELECTOR`"},
					&cli.BoolFlag{Name: "all", Usage: "also dump elements without properties"},
				},
			},
		},
	}

	err := app.Run(ctx, os.Args)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "cssdump: %v\n", err)
		os.Exit(1)
	}
}
