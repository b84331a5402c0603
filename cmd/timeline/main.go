// Command timeline plans the gap paddings of one recording track and,
// with -render, stitches it into a continuous video using the local
// ffmpeg toolchain. It can also issue API tokens.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/aura-webinar/playback/config"
	"github.com/aura-webinar/playback/internal/app"
	"github.com/aura-webinar/playback/internal/auth"
	"github.com/aura-webinar/playback/internal/models"
	"github.com/aura-webinar/playback/internal/padding"
	"github.com/aura-webinar/playback/internal/renderer"
)

type options struct {
	eventsPath string
	first      int64
	last       int64
	namespace  string
	merge      bool

	render bool
	out    string
	audio  string
	work   string
	width  int
	height int

	issueToken string
	subject    string
}

type planOutput struct {
	Namespace models.Namespace  `json:"namespace"`
	Paddings  []models.Padding  `json:"paddings"`
	Fragments []models.Fragment `json:"fragments"`
	Output    string            `json:"output,omitempty"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "timeline: %v\n", err)
		return 2
	}

	if opts.issueToken != "" {
		return issueToken(opts, stdout, stderr)
	}

	in := stdin
	if opts.eventsPath != "-" {
		f, err := os.Open(opts.eventsPath)
		if err != nil {
			fmt.Fprintf(stderr, "timeline: %v\n", err)
			return 1
		}
		defer f.Close()
		in = f
	}
	events, err := readEvents(in)
	if err != nil {
		fmt.Fprintf(stderr, "timeline: %v\n", err)
		return 1
	}
	if opts.merge {
		if events, err = padding.Merge(events); err != nil {
			fmt.Fprintf(stderr, "timeline: %v\n", err)
			return 2
		}
	}

	ns := models.Namespace(opts.namespace)
	var out planOutput
	if opts.render {
		out, err = render(ctx, opts, ns, events)
	} else {
		out, err = plan(ns, events, opts.first, opts.last)
	}
	if err != nil {
		fmt.Fprintf(stderr, "timeline: %v\n", err)
		if padding.IsInvalidInput(err) {
			return 2
		}
		return 1
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(stderr, "timeline: %v\n", err)
		return 1
	}
	return 0
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("timeline", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.eventsPath, "events", "-", "JSON file with the recorded events (- for stdin)")
	fs.Int64Var(&o.first, "first", 0, "timestamp of the recording start, in ms")
	fs.Int64Var(&o.last, "last", 0, "timestamp of the recording end, in ms")
	fs.StringVar(&o.namespace, "namespace", string(models.NamespaceVideo), "track: video or deskshare")
	fs.BoolVar(&o.merge, "merge", false, "coalesce overlapping or touching events before planning")
	fs.BoolVar(&o.render, "render", false, "render the timeline with ffmpeg")
	fs.StringVar(&o.out, "out", "", "rendered output file (with -render)")
	fs.StringVar(&o.audio, "audio", "", "audio track multiplexed into the output (with -render)")
	fs.StringVar(&o.work, "work", "", "working directory for fragments (default RENDER_WORK_DIR)")
	fs.IntVar(&o.width, "width", 0, "video width; probed from the first event when 0")
	fs.IntVar(&o.height, "height", 0, "video height; probed from the first event when 0")
	fs.StringVar(&o.issueToken, "issue-token", "", "print an API token with this role and exit")
	fs.StringVar(&o.subject, "subject", "cli", "subject of an issued token")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if fs.NArg() > 0 {
		return o, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	if o.issueToken != "" {
		return o, nil
	}

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if !set["first"] || !set["last"] {
		return o, errors.New("-first and -last are required")
	}
	if !models.Namespace(o.namespace).Valid() {
		return o, fmt.Errorf("unknown namespace %q", o.namespace)
	}
	if !o.render && (o.out != "" || o.audio != "") {
		return o, errors.New("-out and -audio need -render")
	}
	return o, nil
}

// readEvents accepts either a JSON array of events or an object with an
// "events" array.
func readEvents(r io.Reader) ([]models.Event, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var doc struct {
			Events []models.Event `json:"events"`
		}
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decode events: %w", err)
		}
		return doc.Events, nil
	}
	var events []models.Event
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("decode events: %w", err)
	}
	return events, nil
}

func plan(ns models.Namespace, events []models.Event, first, last int64) (planOutput, error) {
	paddings, err := padding.Plan(events, first, last, ns)
	if err != nil {
		return planOutput{}, err
	}
	return planOutput{
		Namespace: ns,
		Paddings:  paddings,
		Fragments: padding.Interleave(events, paddings),
	}, nil
}

func render(ctx context.Context, o options, ns models.Namespace, events []models.Event) (planOutput, error) {
	cfg, err := config.Load()
	if err != nil {
		return planOutput{}, err
	}
	logger, err := app.NewLogger(cfg.LogLevel)
	if err != nil {
		return planOutput{}, err
	}
	defer logger.Sync()

	if o.work != "" {
		cfg.Render.WorkDir = o.work
	}
	tools := app.NewToolkit(cfg.Render, logger)
	if err := tools.Check(); err != nil {
		return planOutput{}, err
	}
	res, err := app.NewRenderer(cfg.Render, tools, nil, logger).Render(ctx, renderer.Request{
		Namespace: ns,
		Events:    events,
		First:     o.first,
		Last:      o.last,
		Width:     o.width,
		Height:    o.height,
		AudioPath: o.audio,
		Output:    o.out,
	})
	if err != nil {
		return planOutput{}, err
	}
	return planOutput{
		Namespace: ns,
		Paddings:  res.Paddings,
		Fragments: res.Fragments,
		Output:    res.OutputPath,
	}, nil
}

func issueToken(o options, stdout, stderr io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "timeline: %v\n", err)
		return 1
	}
	token, err := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours).Generate(o.subject, o.issueToken)
	if err != nil {
		fmt.Fprintf(stderr, "timeline: %v\n", err)
		return 2
	}
	fmt.Fprintln(stdout, token)
	return 0
}
