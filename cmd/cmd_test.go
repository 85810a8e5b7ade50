package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"yeti/api"
	"yeti/config"
	"yeti/core"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type fakeTTPs struct {
	created []*core.TTP
	listed  []core.TTP
}

func (f *fakeTTPs) List(ctx context.Context) ([]core.TTP, error) { return f.listed, nil }

func (f *fakeTTPs) Create(ctx context.Context, p *core.Principal, ttp *core.TTP) error {
	if ttp.Name == "duplicate" {
		return errors.New("duplicate key")
	}
	ttp.ID = primitive.NewObjectID()
	f.created = append(f.created, ttp)
	return nil
}

type fakeGroups struct{ created []*core.Group }

func (f *fakeGroups) CreateGroup(ctx context.Context, g *core.Group) error {
	g.ID = primitive.NewObjectID()
	f.created = append(f.created, g)
	return nil
}

type fakeUsers map[primitive.ObjectID]*core.User

func (f fakeUsers) GetUser(ctx context.Context, id primitive.ObjectID) (*core.User, error) {
	if u, ok := f[id]; ok {
		return u, nil
	}
	return nil, core.ErrNotFound
}

func useFakeEnv(t *testing.T, env *cliEnv) {
	t.Helper()
	color.NoColor = true
	if env.cfg == nil {
		env.cfg = &config.Config{}
		env.cfg.Auth.JWTSecret = testSecret
		env.cfg.Auth.Issuer = "yeti"
		env.cfg.Auth.JWTExpiry = 0
	}
	env.logger = zap.NewNop().Sugar()

	orig := openEnv
	openEnv = func(ctx context.Context) (*cliEnv, func(), error) {
		return env, func() {}, nil
	}
	t.Cleanup(func() { openEnv = orig })
}

func run(t *testing.T, c *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	c.SetOut(&out)
	c.SetErr(&errOut)
	c.SetArgs(args)
	err := c.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ttps.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestTTPImport(t *testing.T) {
	ttps := &fakeTTPs{}
	useFakeEnv(t, &cliEnv{ttps: ttps})

	path := writeFile(t, `
ttps:
  - name: Spearphishing
    killchain: "3"
    tags: [Email, email]
  - name: Beaconing
    killchain: "6"
    description: periodic callbacks
`)

	out, err := run(t, NewTTPCmd(), "import", path, "--quiet")
	require.NoError(t, err)
	assert.Empty(t, out)

	require.Len(t, ttps.created, 2)
	assert.Equal(t, core.KillChainStep("3"), ttps.created[0].KillChain)
	assert.Equal(t, []string{"email"}, ttps.created[0].Tags)
	assert.Equal(t, "periodic callbacks", ttps.created[1].Description)
}

func TestTTPImport_InvalidEntryWritesNothing(t *testing.T) {
	ttps := &fakeTTPs{}
	useFakeEnv(t, &cliEnv{ttps: ttps})

	path := writeFile(t, `
ttps:
  - name: Spearphishing
    killchain: "3"
  - name: Nowhere
    killchain: "42"
`)

	_, err := run(t, NewTTPCmd(), "import", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entry 2")
	assert.Empty(t, ttps.created)
}

func TestTTPImport_ReportsFailures(t *testing.T) {
	ttps := &fakeTTPs{}
	useFakeEnv(t, &cliEnv{ttps: ttps})

	path := writeFile(t, `
ttps:
  - name: duplicate
    killchain: "1"
  - name: Exfil
    killchain: "7"
`)

	out, err := run(t, NewTTPCmd(), "import", path, "--json")
	require.Error(t, err)
	assert.Len(t, ttps.created, 1)

	var report struct {
		Imported []map[string]interface{} `json:"imported"`
		Failed   []string                 `json:"failed"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Len(t, report.Imported, 1)
	assert.Equal(t, "Objectives", report.Imported[0]["killchain"])
	require.Len(t, report.Failed, 1)
	assert.Contains(t, report.Failed[0], "duplicate")
	assert.Contains(t, err.Error(), "1 of 2 TTPs failed")
}

func TestTTPImport_JSONReportsEmptyFailures(t *testing.T) {
	useFakeEnv(t, &cliEnv{ttps: &fakeTTPs{}})

	path := writeFile(t, `
ttps:
  - name: Exfil
    killchain: "7"
`)

	out, err := run(t, NewTTPCmd(), "import", path, "--json")
	require.NoError(t, err)

	var report map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.JSONEq(t, `[]`, string(report["failed"]))
}

func TestTTPImport_RejectsTraversal(t *testing.T) {
	useFakeEnv(t, &cliEnv{ttps: &fakeTTPs{}})

	_, err := run(t, NewTTPCmd(), "import", "../../etc/passwd")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid file path")
}

func TestTTPList(t *testing.T) {
	ttp, err := core.NewTTP("Spearphishing", "3")
	require.NoError(t, err)
	ttp.ID = primitive.NewObjectID()
	useFakeEnv(t, &cliEnv{ttps: &fakeTTPs{listed: []core.TTP{*ttp}}})

	out, err := run(t, NewTTPCmd(), "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Spearphishing")
	assert.Contains(t, out, "Delivery")

	out, err = run(t, NewTTPCmd(), "list", "--json")
	require.NoError(t, err)
	var infos []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &infos))
	require.Len(t, infos, 1)
	assert.Equal(t, "ttp", infos[0]["type"])
	assert.Equal(t, ttp.ID.Hex(), infos[0]["id"])
}

func TestTTPList_Empty(t *testing.T) {
	useFakeEnv(t, &cliEnv{ttps: &fakeTTPs{}})

	out, err := run(t, NewTTPCmd(), "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No TTPs found")
}

func TestTTPKillChain(t *testing.T) {
	color.NoColor = true

	out, err := run(t, NewTTPCmd(), "killchain", "--json")
	require.NoError(t, err)

	var steps []map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &steps))
	require.Len(t, steps, len(core.KillChainSteps))
	assert.Equal(t, map[string]string{"code": "1", "label": "Reconnaissance"}, steps[0])

	out, err = run(t, NewTTPCmd(), "killchain")
	require.NoError(t, err)
	assert.Contains(t, out, "Reconnaissance")
}

func TestGroupsCreate(t *testing.T) {
	admin := &core.User{ID: primitive.NewObjectID(), Username: "alice", Enabled: true}
	groups := &fakeGroups{}
	useFakeEnv(t, &cliEnv{groups: groups, users: fakeUsers{admin.ID: admin}})

	out, err := run(t, NewGroupsCmd(), "create", "--name", "Blue Team",
		"--admin", admin.ID.Hex(), "--admin", admin.ID.Hex())
	require.NoError(t, err)
	assert.Contains(t, out, "Created group: Blue Team")

	require.Len(t, groups.created, 1)
	g := groups.created[0]
	assert.True(t, g.Enabled)
	assert.Equal(t, []primitive.ObjectID{admin.ID}, g.Members)
	assert.Equal(t, []primitive.ObjectID{admin.ID}, g.Admins)
}

func TestGroupsCreate_Errors(t *testing.T) {
	groups := &fakeGroups{}
	useFakeEnv(t, &cliEnv{groups: groups, users: fakeUsers{}})

	_, err := run(t, NewGroupsCmd(), "create")
	assert.Error(t, err, "--name is required")

	_, err = run(t, NewGroupsCmd(), "create", "--name", "x", "--admin", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ObjectID")

	_, err = run(t, NewGroupsCmd(), "create", "--name", "x", "--admin", primitive.NewObjectID().Hex())
	assert.ErrorIs(t, err, core.ErrNotFound)

	assert.Empty(t, groups.created)
}

func TestTokenIssue(t *testing.T) {
	user := &core.User{ID: primitive.NewObjectID(), Username: "alice", Roles: []string{core.RoleAnalyst}, Enabled: true}
	useFakeEnv(t, &cliEnv{users: fakeUsers{user.ID: user}})

	out, err := run(t, NewTokenCmd(), "issue", "--user", user.ID.Hex(), "--ttl", "1h")
	require.NoError(t, err)

	claims, err := api.ParseToken(string(bytes.TrimSpace([]byte(out))), testSecret, "yeti")
	require.NoError(t, err)
	uid, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, user.ID, uid)
}

func TestTokenIssue_Errors(t *testing.T) {
	disabled := &core.User{ID: primitive.NewObjectID(), Username: "bob", Enabled: false}
	useFakeEnv(t, &cliEnv{users: fakeUsers{disabled.ID: disabled}})

	_, err := run(t, NewTokenCmd(), "issue", "--user", disabled.ID.Hex(), "--ttl", "1h")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disabled")

	_, err = run(t, NewTokenCmd(), "issue", "--user", primitive.NewObjectID().Hex(), "--ttl", "1h")
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = run(t, NewTokenCmd(), "issue", "--user", "abc")
	assert.Error(t, err)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}
