package scheduler

import (
	"context"
	"testing"

	"github.com/fyrsmithlabs/owera/internal/project"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProject(t *testing.T, names ...string) *project.Project {
	t.Helper()
	features := make([]project.Feature, 0, len(names))
	for _, n := range names {
		features = append(features, project.Feature{Name: n, Description: "Describe " + n})
	}
	p, err := project.New("App", nil, features)
	require.NoError(t, err)
	return p
}

func TestScheduler_Schedule_FollowsLifecycle(t *testing.T) {
	ctx := context.Background()
	p := newProject(t, "login")
	s := New()

	steps := []struct {
		advance  func()
		kind     project.TaskKind
		role     project.Role
		describe string
	}{
		{func() {}, project.KindDesign, project.RoleDesigner, "Create design for login"},
		{func() { require.NoError(t, p.RecordDesign("login", "d")) }, project.KindImplement, project.RoleImplementer, "Implement login"},
		{func() { require.NoError(t, p.AppendImplementation("login", "c")) }, project.KindTest, project.RoleVerifier, "Test login"},
		{func() { require.NoError(t, p.MarkTestsPassed("login")) }, project.KindReview, project.RoleApprover, "Review login"},
	}

	for _, step := range steps {
		step.advance()
		created, err := s.Schedule(ctx, p)
		require.NoError(t, err)
		require.Len(t, created, 1)
		assert.Equal(t, step.kind, created[0].Kind)
		assert.Equal(t, step.role, created[0].Role)
		assert.Equal(t, step.describe, created[0].Description)
		assert.Equal(t, project.StatusTodo, created[0].Status)
	}

	require.NoError(t, p.MarkApproved("login"))
	created, err := s.Schedule(ctx, p)
	require.NoError(t, err)
	assert.Empty(t, created)
}

func TestScheduler_Schedule_OnePerFeaturePerCycle(t *testing.T) {
	p := newProject(t, "a", "b", "c")

	created, err := New().Schedule(context.Background(), p)
	require.NoError(t, err)
	require.Len(t, created, 3)
	for i, name := range []string{"a", "b", "c"} {
		assert.Equal(t, name, created[i].Feature)
		assert.Equal(t, project.KindDesign, created[i].Kind)
	}
}

func TestScheduler_Schedule_IdempotentRegardlessOfStatus(t *testing.T) {
	statuses := []project.TaskStatus{
		project.StatusTodo,
		project.StatusInProgress,
		project.StatusDone,
		project.StatusFailed,
	}

	for _, status := range statuses {
		t.Run(string(status), func(t *testing.T) {
			ctx := context.Background()
			p := newProject(t, "login")
			s := New()

			created, err := s.Schedule(ctx, p)
			require.NoError(t, err)
			require.Len(t, created, 1)
			require.NoError(t, p.SetTaskStatus(created[0].ID, status))

			for i := 0; i < 3; i++ {
				again, err := s.Schedule(ctx, p)
				require.NoError(t, err)
				assert.Empty(t, again)
			}
			assert.Len(t, p.Tasks(), 1)
		})
	}
}

func TestScheduler_Schedule_NoRetestAfterFix(t *testing.T) {
	ctx := context.Background()
	p := newProject(t, "login")
	require.NoError(t, p.RecordDesign("login", "d"))
	require.NoError(t, p.AppendImplementation("login", "c"))

	s := New()
	created, err := s.Schedule(ctx, p)
	require.NoError(t, err)
	require.Len(t, created, 1)
	require.Equal(t, project.KindTest, created[0].Kind)
	require.NoError(t, p.SetTaskStatus(created[0].ID, project.StatusDone))

	fix, err := p.AddTask("login", project.KindFix, project.RoleImplementer, "Fix: found a bug")
	require.NoError(t, err)
	require.NoError(t, p.SetTaskStatus(fix.ID, project.StatusDone))

	created, err = s.Schedule(ctx, p)
	require.NoError(t, err)
	assert.Empty(t, created)
}

func TestScheduler_AtMostOnePerKind(t *testing.T) {
	ctx := context.Background()
	p := newProject(t, "a", "b")
	s := New()

	advance := []func(string) error{
		func(n string) error { return p.RecordDesign(n, "d") },
		func(n string) error { return p.AppendImplementation(n, "c") },
		p.MarkTestsPassed,
		p.MarkApproved,
	}

	for cycle := 0; cycle < 12; cycle++ {
		_, err := s.Schedule(ctx, p)
		require.NoError(t, err)
		if cycle < len(advance) {
			require.NoError(t, advance[cycle]("a"))
		}
	}

	counts := map[string]map[project.TaskKind]int{}
	for _, task := range p.Tasks() {
		if counts[task.Feature] == nil {
			counts[task.Feature] = map[project.TaskKind]int{}
		}
		counts[task.Feature][task.Kind]++
	}
	for feature, kinds := range counts {
		for kind, n := range kinds {
			assert.Equal(t, 1, n, "feature %s kind %s", feature, kind)
		}
	}
	assert.Len(t, counts["a"], 4)
	assert.Len(t, counts["b"], 1)
}

func TestRoleFor(t *testing.T) {
	tests := []struct {
		kind project.TaskKind
		want project.Role
	}{
		{project.KindDesign, project.RoleDesigner},
		{project.KindImplement, project.RoleImplementer},
		{project.KindTest, project.RoleVerifier},
		{project.KindReview, project.RoleApprover},
		{project.KindFix, project.RoleImplementer},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			got, ok := RoleFor(tt.kind)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	_, ok := RoleFor("deploy")
	assert.False(t, ok)
}
