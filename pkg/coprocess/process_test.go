package coprocess

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const envHelperMode = "COPROCESS_TEST_HELPER"

func TestMain(m *testing.M) {
	switch os.Getenv(envHelperMode) {
	case "":
		os.Exit(m.Run())
	case "cat":
		_, err := io.Copy(os.Stdout, os.Stdin)
		if err != nil {
			os.Exit(2)
		}
		os.Exit(0)
	case "env":
		fmt.Fprintf(os.Stdout, "%s|%s", os.Getenv(EnvWineDebug), os.Getenv("COPROCESS_TEST_VALUE"))
		os.Exit(0)
	case "stderr":
		fmt.Fprintf(os.Stderr, "arg=%s\n", os.Args[len(os.Args)-1])
		os.Exit(3)
	case "fds":
		target := os.Getenv("COPROCESS_TEST_OPEN_FILE")
		entries, _ := os.ReadDir("/proc/self/fd")
		inherited := 0
		for _, entry := range entries {
			link, err := os.Readlink(filepath.Join("/proc/self/fd", entry.Name()))
			if err == nil && link == target {
				inherited++
			}
		}
		fmt.Fprintf(os.Stdout, "%d", inherited)
		os.Exit(0)
	default:
		os.Exit(1)
	}
}

func helperConfig(t *testing.T, mode string) Config {
	t.Setenv(envHelperMode, mode)
	return Config{
		ExecutablePath: os.Args[0],
	}
}

func countFDs(t *testing.T) int {
	entries, err := os.ReadDir("/proc/self/fd")
	require.NoError(t, err)
	return len(entries)
}

func TestSpawnEchoAndReap(t *testing.T) {
	ctx := context.Background()
	before := countFDs(t)

	p, err := Spawn(ctx, helperConfig(t, "cat"))
	require.NoError(t, err)
	require.NotZero(t, p.PID())

	_, err = p.RequestWriter().Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, p.request.CloseWriter())

	b, err := io.ReadAll(p.DataReader())
	require.NoError(t, err)
	require.Equal(t, "hello", string(b))

	require.NoError(t, p.CloseRequest())
	state, err := p.Reap(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, state.ExitCode())
	require.NoError(t, p.CloseDiagnostic())

	_, err = p.Reap(ctx)
	require.ErrorIs(t, err, ErrAlreadyReaped)

	_, err = os.Stat(fmt.Sprintf("/proc/%d", p.PID()))
	require.True(t, os.IsNotExist(err), "the child is still in the process table")
	require.Equal(t, before, countFDs(t))
}

func TestSpawnEnvIfAbsent(t *testing.T) {
	ctx := context.Background()
	cfg := helperConfig(t, "env")
	t.Setenv("COPROCESS_TEST_VALUE", "from-parent")
	cfg.Env = map[string]string{"COPROCESS_TEST_VALUE": "from-config"}

	p, err := Spawn(ctx, cfg)
	require.NoError(t, err)
	b, err := io.ReadAll(p.DataReader())
	require.NoError(t, err)
	require.NoError(t, p.Close(ctx))

	require.Equal(t, "fixme-all|from-parent", string(b))
}

func TestSpawnArgumentAndDiagnostics(t *testing.T) {
	ctx := context.Background()
	cfg := helperConfig(t, "stderr")
	cfg.Argument = "-l"

	p, err := Spawn(ctx, cfg)
	require.NoError(t, err)

	b, err := io.ReadAll(p.DiagnosticReader())
	require.NoError(t, err)
	require.Equal(t, "arg=-l\n", string(b))

	require.NoError(t, p.CloseRequest())
	state, err := p.Reap(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, state.ExitCode())
	require.NoError(t, p.CloseDiagnostic())
}

func TestSpawnNoInheritedDescriptors(t *testing.T) {
	ctx := context.Background()

	// an unrelated descriptor open in the parent must not reach the child
	path := filepath.Join(t.TempDir(), "parent-only")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	t.Setenv("COPROCESS_TEST_OPEN_FILE", path)

	p, err := Spawn(ctx, helperConfig(t, "fds"))
	require.NoError(t, err)
	b, err := io.ReadAll(p.DataReader())
	require.NoError(t, err)
	require.NoError(t, p.Close(ctx))

	require.Equal(t, "0", string(b))
}

func TestSpawnMissingExecutable(t *testing.T) {
	ctx := context.Background()
	before := countFDs(t)

	_, err := Spawn(ctx, Config{
		ExecutablePath: filepath.Join(t.TempDir(), "does-not-exist"),
	})
	require.ErrorIs(t, err, ErrUnavailable)

	_, err = Spawn(ctx, Config{
		ExecutablePath: filepath.Join(t.TempDir(), "does-not-exist.exe"),
		Runtime:        os.Args[0],
	})
	require.ErrorIs(t, err, ErrUnavailable)

	require.Equal(t, before, countFDs(t))
}

func TestSpawnStartFailureRollsBack(t *testing.T) {
	ctx := context.Background()

	// executable bit set, but not a valid executable image
	path := filepath.Join(t.TempDir(), "garbage")
	require.NoError(t, os.WriteFile(path, []byte{0, 1, 2, 3}, 0755))

	before := countFDs(t)
	_, err := Spawn(ctx, Config{ExecutablePath: path})
	require.Error(t, err)
	require.ErrorIs(t, err, ErrUnavailable)
	require.Equal(t, before, countFDs(t))
}
