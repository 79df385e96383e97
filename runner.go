package wayfinder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/aretw0/wayfinder/pkg/domain"
)

// Runner plays one guide over line-oriented IO, for terminals and scripted tests.
// Presentation belongs to the visual adapter; the Runner only reads commands:
//
//	n, next        next step (also an empty line)
//	p, prev        previous step
//	j <index>      jump to a step
//	c <element>    click an element (needs Interact)
//	pause, resume  pause or resume the guide
//	s, skip        skip the guide
//	q, quit        pause and leave
type Runner struct {
	Input  io.Reader
	Output io.Writer
	// Interact delivers a simulated interaction to the host, e.g. memory.UI.Interact.
	Interact func(elementID, kind string) bool
	// Headless suppresses the prompt.
	Headless bool
}

// NewRunner creates a Runner over in and out.
func NewRunner(in io.Reader, out io.Writer) *Runner {
	return &Runner{Input: in, Output: out}
}

// Run starts guideID and processes commands until the guide completes or is
// skipped, the input ends, or ctx is done. Leaving early pauses the guide.
func (r *Runner) Run(ctx context.Context, o *Orchestrator, guideID string) error {
	if r.Input == nil {
		return errors.New("input reader must be set (use os.Stdin)")
	}
	if r.Output == nil {
		return errors.New("output writer must be set (use os.Stdout)")
	}

	var outMu sync.Mutex
	printf := func(format string, args ...any) {
		outMu.Lock()
		defer outMu.Unlock()
		fmt.Fprintf(r.Output, format, args...)
	}

	finished := make(chan domain.EventType, 1)
	onEnd := func(ev domain.Event) {
		if ev.GuideID != guideID {
			return
		}
		select {
		case finished <- ev.Type:
		default:
		}
	}
	for _, t := range []domain.EventType{domain.EventGuideCompleted, domain.EventGuideSkipped} {
		id := o.On(t, onEnd)
		defer o.Off(id)
	}
	errID := o.On(domain.EventError, func(ev domain.Event) {
		printf("error: %s\n", ev.Message)
	})
	defer o.Off(errID)

	// Commands run off the read loop: an action step blocks its command until
	// the interaction arrives, which is typed on the same input.
	var wg sync.WaitGroup
	defer wg.Wait()
	async := func(cmd func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = cmd(ctx)
		}()
	}

	state := o.State()
	if state.IsActive && state.CurrentGuideID == guideID && state.IsPaused {
		async(o.ResumeGuide)
	} else {
		async(func(ctx context.Context) error {
			started, err := o.StartGuide(ctx, guideID)
			if err == nil && !started {
				printf("guide %q was already completed or skipped\n", guideID)
				onEnd(domain.Event{Type: domain.EventGuideCompleted, GuideID: guideID})
			}
			return err
		})
	}

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(r.Input)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		readErr <- scanner.Err()
	}()

	leave := func() error {
		if st := o.State(); st.IsActive && !st.IsPaused {
			return o.PauseGuide(context.WithoutCancel(ctx))
		}
		return nil
	}

	for {
		if !r.Headless {
			printf("> ")
		}
		select {
		case <-ctx.Done():
			_ = leave()
			return ctx.Err()
		case <-finished:
			return nil
		case err := <-readErr:
			if perr := leave(); perr != nil && err == nil {
				err = perr
			}
			if err != nil {
				return fmt.Errorf("input error: %w", err)
			}
			return nil
		case line := <-lines:
			fields := strings.Fields(line)
			cmd := ""
			if len(fields) > 0 {
				cmd = strings.ToLower(fields[0])
			}
			switch cmd {
			case "", "n", "next":
				async(o.NextStep)
			case "p", "prev", "previous":
				async(o.PreviousStep)
			case "j", "jump":
				var i int
				if len(fields) < 2 {
					printf("usage: j <index>\n")
					continue
				}
				if _, err := fmt.Sscanf(fields[1], "%d", &i); err != nil {
					printf("invalid index %q\n", fields[1])
					continue
				}
				async(func(ctx context.Context) error { return o.JumpToStep(ctx, i) })
			case "c", "click":
				if r.Interact == nil || len(fields) < 2 {
					printf("usage: c <element>\n")
					continue
				}
				if !r.Interact(fields[1], "click") {
					printf("nothing is waiting for %q\n", fields[1])
				}
			case "pause":
				async(o.PauseGuide)
			case "resume", "r":
				async(o.ResumeGuide)
			case "s", "skip":
				async(o.SkipGuide)
			case "q", "quit", "exit":
				if err := leave(); err != nil {
					return err
				}
				printf("Bye!\n")
				return nil
			default:
				printf("unknown command %q\n", cmd)
			}
		}
	}
}
