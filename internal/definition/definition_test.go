package definition

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/procstate/internal/tasks"
	"github.com/roach88/procstate/internal/workflow"
)

func flowIDs(p *workflow.Process) []string {
	var ids []string
	for _, s := range p.Specs() {
		for _, f := range s.Flows() {
			ids = append(ids, s.Name()+"->"+f.ID+"->"+f.Target.Name())
		}
	}
	return ids
}

func TestLoadFile_YAML(t *testing.T) {
	reg, err := LoadFile(filepath.Join("testdata", "approval.yaml"))
	require.NoError(t, err)

	assert.Equal(t, []string{"Approval", "ReviewSub"}, reg.Names())
	assert.Equal(t, filepath.Join("testdata", "approval.yaml"), reg.Source())
	assert.Len(t, reg.Digest(), 64)

	p, ok := reg.Process("Approval")
	require.True(t, ok)
	assert.Equal(t, "Start", p.Start().Name())

	review, ok := p.Spec("Review")
	require.True(t, ok)
	sub, ok := reg.Process("ReviewSub")
	require.True(t, ok)
	assert.Same(t, sub, review.Subprocess(), "call activity is bound to the named process")

	gate, ok := p.Spec("Gate")
	require.True(t, ok)
	gw := gate.(*tasks.ExclusiveGateway)
	assert.Equal(t, "Flow_Rejected", gw.DefaultFlow())
	cond, ok := gw.Condition("Flow_Approved")
	require.True(t, ok)
	assert.Equal(t, `choice == "Yes"`, cond)

	decide, _ := p.Spec("Decide")
	assert.Equal(t, []string{"No", "Yes"}, decide.(*tasks.ManualTask).Choices())

	reminder, _ := p.Spec("Reminder")
	assert.Equal(t, "reminder", reminder.(*tasks.MessageEvent).Message())
}

func TestLoadFile_CUEMatchesYAML(t *testing.T) {
	fromYAML, err := LoadFile(filepath.Join("testdata", "approval.yaml"))
	require.NoError(t, err)
	fromCUE, err := LoadFile(filepath.Join("testdata", "approval.cue"))
	require.NoError(t, err)

	assert.Equal(t, fromYAML.Names(), fromCUE.Names())
	for _, name := range fromYAML.Names() {
		py, _ := fromYAML.Process(name)
		pc, _ := fromCUE.Process(name)
		assert.Equal(t, flowIDs(py), flowIDs(pc), name)
	}

	approved, _ := mustProcess(t, fromCUE, "Approval").Spec("Approved")
	assert.Equal(t, "status = \"approved\"\n", approved.(*tasks.ScriptTask).Script())
}

func mustProcess(t *testing.T, r *Registry, name string) *workflow.Process {
	t.Helper()
	p, ok := r.Process(name)
	require.True(t, ok)
	return p
}

func TestLoadedProcessRuns(t *testing.T) {
	reg, err := LoadFile(filepath.Join("testdata", "approval.yaml"))
	require.NoError(t, err)

	w, err := workflow.New(mustProcess(t, reg, "Approval"))
	require.NoError(t, err)
	require.NoError(t, w.DoEngineSteps())

	fill, err := w.FindReady("Fill")
	require.NoError(t, err)
	require.NoError(t, w.Complete(fill))
	require.NoError(t, w.DoEngineSteps())

	s, err := w.State()
	require.NoError(t, err)
	assert.Equal(t, "Flow_Split_Reminder:W;Review:Flow_RStart_Check:R", s)
}

func TestLoadFile_Errors(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		return path
	}

	tests := []struct {
		name    string
		file    string
		content string
		want    string
		defErr  bool
	}{
		{
			name: "unsupported extension",
			file: "p.json", content: "{}",
			want: "unsupported definition format",
		},
		{
			name: "unknown YAML field",
			file: "p.yaml", content: "processes:\n  - name: P\n    colour: red\n",
			want: "colour",
		},
		{
			name: "CUE syntax error",
			file: "p.cue", content: "processes: [",
			want: "p.cue",
		},
		{
			name: "CUE without processes",
			file: "q.cue", content: "other: 1\n",
			want: "processes is required",
		},
		{
			name: "unknown kind",
			file: "kind.yaml",
			content: "processes:\n  - name: P\n    start: S\n    tasks:\n      - {name: S, kind: teleport}\n",
			want: "unknown task kind", defErr: true,
		},
		{
			name: "missing start",
			file: "start.yaml",
			content: "processes:\n  - name: P\n    start: Nope\n    tasks:\n      - {name: S, kind: start}\n",
			want: "start task", defErr: true,
		},
		{
			name: "flow to unknown task",
			file: "flow.yaml",
			content: "processes:\n  - name: P\n    start: S\n    tasks:\n      - {name: S, kind: start}\n    flows:\n      - {id: F, from: S, to: X}\n",
			want: "unknown target task", defErr: true,
		},
		{
			name: "unknown called process",
			file: "call.yaml",
			content: "processes:\n  - name: P\n    start: S\n    tasks:\n      - {name: S, kind: start}\n      - {name: C, kind: call, process: Missing}\n    flows:\n      - {id: F, from: S, to: C}\n",
			want: `calls unknown process "Missing"`, defErr: true,
		},
		{
			name: "default on non-gateway",
			file: "default.yaml",
			content: "processes:\n  - name: P\n    start: S\n    tasks:\n      - {name: S, kind: start, default: F}\n      - {name: E, kind: end}\n    flows:\n      - {id: F, from: S, to: E}\n",
			want: "only exclusive gateways", defErr: true,
		},
		{
			name: "message without name",
			file: "msg.yaml",
			content: "processes:\n  - name: P\n    start: S\n    tasks:\n      - {name: S, kind: message}\n",
			want: "needs a message name", defErr: true,
		},
		{
			name: "separator in flow id",
			file: "flowid.yaml",
			content: "processes:\n  - name: P\n    start: S\n    tasks:\n      - {name: S, kind: start}\n      - {name: E, kind: end}\n    flows:\n      - {id: \"flow:1\", from: S, to: E}\n",
			want: `flow id "flow:1"`, defErr: true,
		},
		{
			name: "separator in call activity name",
			file: "callname.yaml",
			content: "processes:\n  - name: P\n    start: S\n    tasks:\n      - {name: S, kind: start}\n      - {name: \"A;B\", kind: call, process: Q}\n  - {name: Q, start: S, tasks: [{name: S, kind: start}]}\n",
			want: `call activity name "A;B"`, defErr: true,
		},
		{
			name: "duplicate process",
			file: "dup.yaml",
			content: "processes:\n  - {name: P, start: S, tasks: [{name: S, kind: start}]}\n  - {name: P, start: S, tasks: [{name: S, kind: start}]}\n",
			want: "defined twice", defErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFile(write(tt.file, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.Equal(t, tt.defErr, IsDefinitionError(err))
		})
	}
}

func TestBuild_NFCNormalization(t *testing.T) {
	decomposed := "Re\u0301vision"
	composed := "R\u00e9vision"

	doc := &Document{Processes: []ProcessDef{{
		Name:  decomposed,
		Start: "S",
		Tasks: []TaskDef{{Name: "S", Kind: KindStart}, {Name: composed, Kind: KindManual}},
		Flows: []FlowDef{{ID: "F", From: "S", To: decomposed}},
	}}}
	reg, err := Build(doc)
	require.NoError(t, err)

	p, ok := reg.Process(composed)
	require.True(t, ok, "lookup by the composed form")
	_, ok = reg.Process(decomposed)
	assert.True(t, ok, "lookup by the decomposed form")
	assert.Equal(t, composed, p.Name())

	flow, ok := p.Start().FlowByID("F")
	require.True(t, ok)
	assert.Equal(t, composed, flow.Target.Name())
}

func TestBuild_UnknownCalledProcessesInDocumentOrder(t *testing.T) {
	doc := &Document{Processes: []ProcessDef{
		{
			Name:  "P",
			Start: "S",
			Tasks: []TaskDef{
				{Name: "S", Kind: KindStart},
				{Name: "C1", Kind: KindCall, Process: "Missing1"},
				{Name: "C2", Kind: KindCall, Process: "Missing2"},
			},
		},
		{
			Name:  "Q",
			Start: "S",
			Tasks: []TaskDef{
				{Name: "S", Kind: KindStart},
				{Name: "C3", Kind: KindCall, Process: "Missing3"},
			},
		},
	}}

	for i := 0; i < 10; i++ {
		_, err := Build(doc)
		require.Error(t, err)
		lines := strings.Split(err.Error(), "\n")
		require.Len(t, lines, 3)
		assert.Contains(t, lines[0], `"Missing1"`)
		assert.Contains(t, lines[1], `"Missing2"`)
		assert.Contains(t, lines[2], `"Missing3"`)
	}
}

func TestBuild_Empty(t *testing.T) {
	_, err := Build(&Document{})
	assert.True(t, IsDefinitionError(err))
	_, err = Build(nil)
	assert.Error(t, err)
}
