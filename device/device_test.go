package device_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jrsteele09/go-moment-client/device"
	"github.com/stretchr/testify/require"
)

func TestDeriveIsDeterministic(t *testing.T) {
	p := device.Properties{Model: "Pixel 8", Serial: "abc123", AppID: "com.example.moment"}

	a := device.Derive(p)
	b := device.Derive(p)
	require.Equal(t, a, b)
	require.Len(t, a.Hash, 64)
	require.Regexp(t, "^[0-9a-f]{64}$", a.Hash)

	p.Serial = "abc124"
	require.NotEqual(t, a.Hash, device.Derive(p).Hash)
}

func TestDeriveKnownValue(t *testing.T) {
	id := device.Derive(device.Properties{Model: "Pixel 8", Serial: "abc123", AppID: "com.example.moment"})
	require.Equal(t, "1ad3c2fe7d7abea1d942dc17d94273278a8d5af51cb54774b95e1e0507357a84", id.Hash)
	require.Equal(t, id.Hash, id.String())
}

func TestInstallIDPersists(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")

	first, err := device.InstallID(dir)
	require.NoError(t, err)
	second, err := device.InstallID(dir)
	require.NoError(t, err)
	require.Equal(t, first, second)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "install-id"), []byte("garbage"), 0o600))
	third, err := device.InstallID(dir)
	require.NoError(t, err)
	require.NotEqual(t, first, third, "an unreadable id is replaced")
}

func TestHostProperties(t *testing.T) {
	p, err := device.HostProperties("com.example.moment", t.TempDir())
	require.NoError(t, err)
	require.Equal(t, "com.example.moment", p.AppID)
	require.NotEmpty(t, p.Model)
	require.NotEmpty(t, p.Serial)
}
