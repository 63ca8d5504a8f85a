package orchestrator

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/owera/internal/checkpoint"
	"github.com/fyrsmithlabs/owera/internal/events"
	"github.com/fyrsmithlabs/owera/internal/llm"
	"github.com/fyrsmithlabs/owera/internal/logging"
	"github.com/fyrsmithlabs/owera/internal/project"
	"github.com/fyrsmithlabs/owera/internal/telemetry"
	"github.com/fyrsmithlabs/owera/internal/worker"
)

func happyRules(verify string) []llm.Rule {
	return []llm.Rule{
		{Match: worker.MarkerDesign, Responses: []string{"```html\n<form>login</form>\n```"}},
		{Match: worker.MarkerFix, Responses: []string{"```python\ndef login():\n    return 'fixed'\n```"}},
		{Match: worker.MarkerImplement, Responses: []string{"```python\n@app.route('/login')\ndef login():\n    return 'ok'\n```"}},
		{Match: worker.MarkerVerify, Responses: []string{verify}},
		{Match: worker.MarkerApprove, Responses: []string{"Approve"}},
	}
}

func newProject(t *testing.T, names ...string) *project.Project {
	t.Helper()
	features := make([]project.Feature, 0, len(names))
	for _, n := range names {
		features = append(features, project.Feature{Name: n, Description: "User " + n})
	}
	p, err := project.New("TestApp", []string{"Python/Flask", "HTML/CSS"}, features)
	require.NoError(t, err)
	return p
}

func newLoop(t *testing.T, opts Options) *Loop {
	t.Helper()
	l, err := New(opts)
	require.NoError(t, err)
	return l
}

func countStatus(tasks []project.Task, status project.TaskStatus) int {
	n := 0
	for _, t := range tasks {
		if t.Status == status {
			n++
		}
	}
	return n
}

func TestNew_RequiresClient(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)

	l := newLoop(t, Options{Client: llm.NewScripted()})
	assert.Equal(t, DefaultMaxCycles, l.MaxCycles())
}

func TestRun_HappyPath(t *testing.T) {
	store, err := checkpoint.OpenInMemory()
	require.NoError(t, err)
	defer store.Close()
	rec := &events.Recorder{}

	var progress []Progress
	l := newLoop(t, Options{
		Client:      llm.NewScripted(happyRules("No issues")...),
		Checkpoints: store,
		Events:      rec,
		Progress:    func(p Progress) { progress = append(progress, p) },
	})
	p := newProject(t, "login")

	res, err := l.Run(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, OutcomeComplete, res.Outcome)
	assert.Equal(t, 4, res.Cycles)
	assert.True(t, res.Snapshot.Complete)
	assert.Empty(t, res.Snapshot.Issues)

	f, ok := res.Snapshot.Feature("login")
	require.True(t, ok)
	assert.True(t, f.HasDesign)
	assert.True(t, f.HasImplementation)
	assert.True(t, f.HasPassedTests)
	assert.True(t, f.IsApproved)

	require.Len(t, res.Snapshot.Tasks, 4)
	assert.Equal(t, 4, countStatus(res.Snapshot.Tasks, project.StatusDone))
	kinds := []project.TaskKind{project.KindDesign, project.KindImplement, project.KindTest, project.KindReview}
	for i, k := range kinds {
		assert.Equal(t, k, res.Snapshot.Tasks[i].Kind)
	}

	assert.Equal(t, "<form>login</form>", res.Snapshot.Artifacts["login"].Design)
	assert.Equal(t, []string{"@app.route('/login')\ndef login():\n    return 'ok'"}, res.Snapshot.Artifacts["login"].Implementations)

	retro := res.Retrospective
	assert.Equal(t, 4, retro.Tasks)
	assert.Equal(t, 4, retro.Done)
	assert.Equal(t, 0, retro.Open)
	assert.Equal(t, 1, retro.Stages[project.StageApproved])

	cps, err := store.List(context.Background(), p.RunID())
	require.NoError(t, err)
	assert.Len(t, cps, 4)
	latest, err := store.Latest(context.Background(), p.RunID())
	require.NoError(t, err)
	assert.True(t, latest.Snapshot.Complete)

	assert.Len(t, rec.OfType(events.RunStarted), 1)
	assert.Len(t, rec.OfType(events.CycleStarted), 4)
	assert.Len(t, rec.OfType(events.TaskCreated), 4)
	assert.Len(t, rec.OfType(events.TaskCompleted), 4)
	assert.Empty(t, rec.OfType(events.IssueRaised))
	finished := rec.OfType(events.RunFinished)
	require.Len(t, finished, 1)
	assert.Equal(t, string(OutcomeComplete), finished[0].Outcome)
	all := rec.Events()
	assert.Equal(t, events.RunFinished, all[len(all)-1].Type)

	require.NotEmpty(t, progress)
	last := progress[len(progress)-1]
	assert.Equal(t, ProgressFinished, last.Kind)
	assert.Equal(t, OutcomeComplete, last.Outcome)
	done, total := last.Steps()
	assert.Equal(t, 4, done)
	assert.Equal(t, 4, total)
}

func TestRun_FoundABugDeadlocks(t *testing.T) {
	tl := logging.NewTestLogger()
	rec := &events.Recorder{}
	l := newLoop(t, Options{
		Logger: tl.Logger,
		Client: llm.NewScripted(happyRules("found a bug")...),
		Events: rec,
	})
	p := newProject(t, "login")

	res, err := l.Run(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, OutcomeDeadlock, res.Outcome)
	assert.Equal(t, 5, res.Cycles)
	assert.False(t, res.Snapshot.Complete)

	f, _ := res.Snapshot.Feature("login")
	assert.True(t, f.HasImplementation)
	assert.False(t, f.HasPassedTests)
	assert.False(t, f.IsApproved)

	require.Len(t, res.Snapshot.Issues, 1)
	assert.Equal(t, "found a bug", res.Snapshot.Issues[0].Description)
	assert.False(t, res.Snapshot.Issues[0].IsResolved)

	var testTasks, fixTasks []project.Task
	for _, task := range res.Snapshot.Tasks {
		switch task.Kind {
		case project.KindTest:
			testTasks = append(testTasks, task)
		case project.KindFix:
			fixTasks = append(fixTasks, task)
		}
	}
	require.Len(t, testTasks, 1)
	assert.Equal(t, project.StatusDone, testTasks[0].Status)
	require.Len(t, fixTasks, 1)
	assert.Equal(t, project.StatusDone, fixTasks[0].Status)
	assert.Equal(t, "Fix: found a bug", fixTasks[0].Description)
	assert.Equal(t, project.RoleImplementer, fixTasks[0].Role)

	assert.Equal(t, []string{"def login():\n    return 'fixed'"}, res.Snapshot.Artifacts["login"].Implementations)
	assert.Equal(t, 1, res.Retrospective.OpenIssues)

	tl.AssertLogged(t, zapcore.WarnLevel, "deadlock")
	tl.AssertNotLogged(t, zapcore.WarnLevel, "ceiling")
	tl.AssertField(t, "deadlock", "cycle", int64(5))
	tl.AssertLogged(t, zapcore.InfoLevel, "verdict rejected")

	assert.Len(t, rec.OfType(events.IssueRaised), 1)
	// design, implement and test plus the fix queued by the Verifier
	assert.Len(t, rec.OfType(events.TaskCreated), 4)
}

func TestRun_Ceiling(t *testing.T) {
	tl := logging.NewTestLogger()
	l := newLoop(t, Options{
		Logger:    tl.Logger,
		Client:    llm.NewScripted(happyRules("No issues")...),
		MaxCycles: 2,
	})
	p := newProject(t, "login")

	res, err := l.Run(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, OutcomeCeiling, res.Outcome)
	assert.Equal(t, 2, res.Cycles)
	f, _ := res.Snapshot.Feature("login")
	assert.True(t, f.HasImplementation)
	assert.False(t, f.HasPassedTests)
	tl.AssertLogged(t, zapcore.WarnLevel, "ceiling")
}

func TestRun_Cancelled(t *testing.T) {
	t.Run("before the first cycle", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		l := newLoop(t, Options{Client: llm.NewScripted(happyRules("No issues")...)})

		res, err := l.Run(ctx, newProject(t, "login"))
		assert.ErrorIs(t, err, context.Canceled)
		require.NotNil(t, res)
		assert.Equal(t, OutcomeCancelled, res.Outcome)
		assert.Equal(t, 0, res.Cycles)
	})

	t.Run("between tasks", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		rec := &events.Recorder{}
		l := newLoop(t, Options{
			Client: llm.NewScripted(happyRules("No issues")...),
			Events: rec,
			Progress: func(p Progress) {
				if p.Kind == ProgressTask {
					cancel()
				}
			},
		})
		p := newProject(t, "a", "b")

		res, err := l.Run(ctx, p)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, OutcomeCancelled, res.Outcome)
		assert.Equal(t, 1, res.Cycles)
		assert.Equal(t, 1, countStatus(res.Snapshot.Tasks, project.StatusDone))
		assert.Equal(t, 1, countStatus(res.Snapshot.Tasks, project.StatusTodo), "second task never dispatched")

		finished := rec.OfType(events.RunFinished)
		require.Len(t, finished, 1)
		assert.Equal(t, string(OutcomeCancelled), finished[0].Outcome)
	})
}

func TestRun_ModelTimeoutFailsTask(t *testing.T) {
	rules := happyRules("No issues")
	rules[0] = llm.Rule{Match: worker.MarkerDesign, Err: fmt.Errorf("%w: scripted after 1s", llm.ErrTimeout)}
	l := newLoop(t, Options{Client: llm.NewScripted(rules...)})
	p := newProject(t, "login")

	res, err := l.Run(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, OutcomeDeadlock, res.Outcome)
	assert.Equal(t, 2, res.Cycles)
	require.Len(t, res.Snapshot.Tasks, 1)
	assert.Equal(t, project.StatusFailed, res.Snapshot.Tasks[0].Status)
	require.Len(t, res.Snapshot.Issues, 1)
	assert.Equal(t, "Designer timed out on Create design for login", res.Snapshot.Issues[0].Description)
	assert.Equal(t, 1, res.Retrospective.Failed)
}

func TestRun_UnknownRoleFailsTask(t *testing.T) {
	l := newLoop(t, Options{Client: llm.NewScripted(happyRules("No issues")...)})
	p := newProject(t, "login")
	_, err := p.AddTask("login", project.KindDesign, project.Role("Stakeholder"), "Create design for login")
	require.NoError(t, err)

	res, err := l.Run(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, OutcomeDeadlock, res.Outcome)
	require.Len(t, res.Snapshot.Issues, 1)
	assert.Contains(t, res.Snapshot.Issues[0].Description, "unknown role")
	assert.Equal(t, project.StatusFailed, res.Snapshot.Tasks[0].Status)
}

func TestRun_MultipleFeaturesSequential(t *testing.T) {
	client := llm.NewScripted(happyRules("No issues")...)
	l := newLoop(t, Options{Client: client})
	p := newProject(t, "login", "signup", "profile")

	res, err := l.Run(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, OutcomeComplete, res.Outcome)
	assert.Equal(t, 4, res.Cycles)
	assert.Equal(t, 12, countStatus(res.Snapshot.Tasks, project.StatusDone))
	assert.Equal(t, 3, client.CallsMatching(worker.MarkerDesign))

	calls := client.Calls()
	require.Len(t, calls, 12)
	assert.Contains(t, calls[0].Prompt, "'login'")
	assert.Contains(t, calls[1].Prompt, "'signup'")
	assert.Contains(t, calls[2].Prompt, "'profile'")
}

// barrierClient holds each call until want calls have been in flight at
// once, or the wait expires, and records the peak concurrency.
type barrierClient struct {
	inner   llm.Client
	want    int32
	current atomic.Int32
	peak    atomic.Int32
}

func (b *barrierClient) Generate(ctx context.Context, prompt string, opts llm.Options) (string, error) {
	n := b.current.Add(1)
	defer b.current.Add(-1)
	for {
		peak := b.peak.Load()
		if n <= peak || b.peak.CompareAndSwap(peak, n) {
			break
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for b.peak.Load() < b.want && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	return b.inner.Generate(ctx, prompt, opts)
}

func TestRun_ParallelDispatch(t *testing.T) {
	client := &barrierClient{inner: llm.NewScripted(happyRules("No issues")...), want: 3}
	l := newLoop(t, Options{Client: client, Parallelism: 3})
	p := newProject(t, "login", "signup", "profile")

	res, err := l.Run(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, OutcomeComplete, res.Outcome)
	assert.Equal(t, 4, res.Cycles)
	assert.Equal(t, 12, countStatus(res.Snapshot.Tasks, project.StatusDone))
	assert.Equal(t, int32(3), client.peak.Load())
	assert.Empty(t, res.Snapshot.Issues)
}

// randomClient answers verdict prompts at random and sometimes fails.
type randomClient struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func (c *randomClient) Generate(_ context.Context, prompt string, _ llm.Options) (string, error) {
	c.mu.Lock()
	roll := c.rng.Intn(10)
	c.mu.Unlock()

	if roll == 0 {
		return "", &llm.CallError{Provider: "random", Err: fmt.Errorf("roll %d", roll)}
	}
	switch {
	case strings.Contains(prompt, worker.MarkerVerify):
		if roll < 6 {
			return "No issues", nil
		}
		return "found a bug", nil
	case strings.Contains(prompt, worker.MarkerApprove):
		if roll < 6 {
			return "Approve", nil
		}
		return "Missing validation", nil
	default:
		return "prose only", nil
	}
}

func TestRun_FlagsAreMonotonic(t *testing.T) {
	for seed := int64(1); seed <= 25; seed++ {
		t.Run(fmt.Sprintf("seed %d", seed), func(t *testing.T) {
			p := newProject(t, "a", "b", "c")
			seen := make(map[string]project.Feature)

			check := func(pr Progress) {
				for _, f := range pr.Snapshot.Features {
					prev := seen[f.Name]
					assert.False(t, prev.HasDesign && !f.HasDesign, "%s lost design", f.Name)
					assert.False(t, prev.HasImplementation && !f.HasImplementation, "%s lost implementation", f.Name)
					assert.False(t, prev.HasPassedTests && !f.HasPassedTests, "%s lost tests", f.Name)
					assert.False(t, prev.IsApproved && !f.IsApproved, "%s lost approval", f.Name)
					seen[f.Name] = f
				}

				perKind := make(map[string]int)
				for _, task := range pr.Snapshot.Tasks {
					if task.Kind == project.KindFix {
						continue
					}
					key := task.Feature + "/" + string(task.Kind)
					perKind[key]++
					assert.LessOrEqual(t, perKind[key], 1, "duplicate %s", key)
				}
			}

			l := newLoop(t, Options{
				Client:    &randomClient{rng: rand.New(rand.NewSource(seed))},
				MaxCycles: 10,
				Progress:  check,
			})
			res, err := l.Run(context.Background(), p)
			require.NoError(t, err)
			assert.Contains(t, []Outcome{OutcomeComplete, OutcomeDeadlock, OutcomeCeiling}, res.Outcome)
			assert.LessOrEqual(t, res.Cycles, 10)
			if res.Outcome == OutcomeComplete {
				assert.Zero(t, res.Snapshot.OpenIssues())
			}
		})
	}
}

func TestRun_Telemetry(t *testing.T) {
	tt := telemetry.NewTestTelemetry()
	l := newLoop(t, Options{
		Client: llm.NewScripted(happyRules("No issues")...),
		Tracer: tt.Tracer("test"),
		Meter:  tt.Meter("test"),
	})

	_, err := l.Run(context.Background(), newProject(t, "login"))
	require.NoError(t, err)

	tt.AssertSpanExists(t, "orchestrator.Run")
	tt.AssertSpanAttribute(t, "orchestrator.Run", "outcome", "complete")
	assert.Len(t, tt.SpansNamed("orchestrator.cycle"), 4)
	tt.AssertSpanExists(t, "worker.designer")
	tt.AssertSpanExists(t, "worker.approver")

	assert.Equal(t, int64(4), tt.CounterValue(t, "owera.orchestrator.cycles"))
	assert.Equal(t, int64(1), tt.CounterValue(t, "owera.orchestrator.tasks",
		attribute.String("kind", "design"), attribute.String("status", "done")))
	assert.Equal(t, int64(1), tt.CounterValue(t, "owera.orchestrator.runs", attribute.String("outcome", "complete")))
}

func TestRun_NilProject(t *testing.T) {
	l := newLoop(t, Options{Client: llm.NewScripted()})
	_, err := l.Run(context.Background(), nil)
	assert.Error(t, err)
}
