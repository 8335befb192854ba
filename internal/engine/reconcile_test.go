package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bianoble/registry-manager/internal/manifest"
	"github.com/bianoble/registry-manager/internal/versioncmp"
)

var fixedNow = time.Date(2024, 11, 3, 14, 5, 9, 123456789, time.FixedZone("CET", 3600))

func fixedReconciler() *Reconciler {
	return &Reconciler{Now: func() time.Time { return fixedNow }}
}

func ext(id, version string) manifest.Extension {
	return manifest.Extension{ID: id, Name: id + " name", Version: version}
}

func newManifest(types string, exts ...manifest.Extension) *manifest.Manifest {
	return &manifest.Manifest{
		BuildTime: "2024-01-01T00:00:00.000Z",
		BuiltWith: manifest.BuiltWith{Toolchain: "0.9.0", Types: types},
		Repository: manifest.RepositoryInfo{
			Name:        "Paperback Community",
			Description: "Community extensions",
		},
		Sources: exts,
	}
}

func ids(exts []manifest.Extension) []string {
	out := make([]string, len(exts))
	for i, e := range exts {
		out[i] = e.ID + "@" + e.Version
	}
	return out
}

func TestReconcileAddsNewExtension(t *testing.T) {
	registry := newManifest("0.9.0", ext("A", "1.0.0"))
	repository := newManifest("0.9.1", ext("B", "1.0.0"))
	repository.BuiltWith.Toolchain = "1.0.0-alpha.3"

	res, err := fixedReconciler().Reconcile(registry, repository)
	require.NoError(t, err)

	assert.Equal(t, []string{"A@1.0.0", "B@1.0.0"}, ids(registry.Sources))
	assert.Equal(t, []Change{{ID: "B", Name: "B name", Kind: ChangeAdded, To: "1.0.0"}}, res.Changes)
	assert.Equal(t, []string{"B"}, res.ChangedIDs())
	assert.Equal(t, "2024-11-03T13:05:09.123Z", registry.BuildTime)
	assert.Equal(t, "1.0.0-alpha.3", registry.BuiltWith.Toolchain)
	assert.Equal(t, "0.9.1", registry.BuiltWith.Types)
	assert.Equal(t, "Paperback Community", registry.Repository.Name)
}

func TestReconcileInsertsNewerBeforeOld(t *testing.T) {
	registry := newManifest("0.9.0", ext("A", "1.0.0"), ext("B", "2.0.0"), ext("C", "1.0.0"))
	repository := newManifest("0.9.0", ext("B", "2.1.0"))

	res, err := fixedReconciler().Reconcile(registry, repository)
	require.NoError(t, err)

	assert.Equal(t, []string{"A@1.0.0", "B@2.1.0", "B@2.0.0", "C@1.0.0"}, ids(registry.Sources))
	require.Len(t, res.Changes, 1)
	assert.Equal(t, ChangeUpdated, res.Changes[0].Kind)
	assert.Equal(t, "2.0.0", res.Changes[0].From)
	assert.Equal(t, "2.1.0", res.Changes[0].To)
}

func TestReconcileNothingToUpdate(t *testing.T) {
	registry := newManifest("0.9.0", ext("A", "1.0.0"), ext("B", "2.0.0"))
	repository := newManifest("0.9.0", ext("A", "1.0.0"), ext("B", "1.5.0"))
	before := registry.Clone()

	res, err := fixedReconciler().Reconcile(registry, repository)
	require.ErrorIs(t, err, ErrNothingToUpdate)
	require.NotNil(t, res)
	assert.Empty(t, res.Changes)
	assert.Equal(t, []string{"A", "B"}, res.Unchanged)
	assert.Equal(t, before, registry, "registry must not change when nothing is updated")
}

func TestReconcileToolchainGate(t *testing.T) {
	tests := []struct {
		name       string
		registry   string
		repository string
		wantErr    bool
	}{
		{"repository newer", "0.9.0", "0.9.1", false},
		{"equal", "0.9.0", "0.9.0", false},
		{"repository older", "1.0.0", "0.9.9", true},
		{"unparsable registry falls back to 0.9.0", "garbage", "0.9.0", false},
		{"unparsable registry above older repository", "garbage", "0.8.0", true},
		{"unparsable repository falls back to 0.0.0", "0.0.1", "garbage", true},
		{"empty registry falls back to 0.9.0", "", "0.9.0", false},
		{"empty registry above older repository", "", "0.8.9", true},
		{"empty repository falls back to 0.0.0", "0.0.1", "", true},
		{"both empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := newManifest(tt.registry, ext("A", "1.0.0"))
			repository := newManifest(tt.repository, ext("A", "2.0.0"))
			before := registry.Clone()

			_, err := fixedReconciler().Reconcile(registry, repository)
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}

			require.ErrorIs(t, err, ErrIncompatibleToolchain)
			var tcErr *IncompatibleToolchainError
			require.True(t, errors.As(err, &tcErr))
			assert.Equal(t, tt.registry, tcErr.Registry)
			assert.Equal(t, before, registry)
		})
	}
}

func TestReconcileGateIsMonotonic(t *testing.T) {
	// Once a registry types version rejects a repository, every higher
	// registry version rejects it too.
	versions := []string{"0.8.0", "0.9.0", "0.9.1", "1.0.0", "1.2.0"}
	const repository = "0.9.1"

	rejected := false
	for _, v := range versions {
		_, err := fixedReconciler().Reconcile(newManifest(v, ext("A", "1.0.0")), newManifest(repository, ext("A", "2.0.0")))
		failed := errors.Is(err, ErrIncompatibleToolchain)
		if rejected {
			assert.True(t, failed, "registry %s should be rejected", v)
		}
		rejected = rejected || failed
	}
	assert.True(t, rejected)
}

func TestReconcileUnparsableRepositoryVersion(t *testing.T) {
	registry := newManifest("0.9.0", ext("A", "0.0.1"))
	repository := newManifest("0.9.0", ext("A", "not-a-version"))

	_, err := fixedReconciler().Reconcile(registry, repository)
	require.ErrorIs(t, err, ErrNothingToUpdate)
	assert.Equal(t, []string{"A@0.0.1"}, ids(registry.Sources))
}

func TestReconcileUnparsableRegistryVersion(t *testing.T) {
	registry := newManifest("0.9.0", ext("A", "latest"))
	repository := newManifest("0.9.0", ext("B", "1.0.0"), ext("A", "1.0.0"))
	before := registry.Clone()

	_, err := fixedReconciler().Reconcile(registry, repository)
	require.ErrorIs(t, err, versioncmp.ErrInvalidVersion)
	assert.Contains(t, err.Error(), "'A'")
	assert.Equal(t, before, registry, "a failed reconcile must leave the registry untouched")
}

func TestReconcileEmptyVersionsAfterDecode(t *testing.T) {
	decode := func(m *manifest.Manifest) *manifest.Manifest {
		enc, err := manifest.Encode(m)
		require.NoError(t, err)
		out, err := manifest.Decode(enc)
		require.NoError(t, err)
		return out
	}

	// An empty repository version is never newer; an empty registry types
	// version is read as 0.9.0.
	registry := decode(newManifest("", ext("A", "1.0.0")))
	repository := decode(newManifest("0.9.0", ext("A", ""), ext("B", "1.0.0")))

	res, err := fixedReconciler().Reconcile(registry, repository)
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, res.ChangedIDs())
	assert.Equal(t, []string{"A"}, res.Unchanged)
	assert.Equal(t, []string{"A@1.0.0", "B@1.0.0"}, ids(registry.Sources))

	// An empty registry extension version is malformed registry data.
	registry = decode(newManifest("0.9.0", ext("A", "")))
	before := registry.Clone()
	_, err = fixedReconciler().Reconcile(registry, decode(newManifest("0.9.0", ext("A", "1.0.0"))))
	require.ErrorIs(t, err, versioncmp.ErrInvalidVersion)
	assert.Equal(t, before, registry)
}

func TestReconcileMixedChanges(t *testing.T) {
	registry := newManifest("0.9.0", ext("A", "1.0.0"), ext("B", "1.0.0"))
	repository := newManifest("0.9.0", ext("C", "0.1.0"), ext("B", "1.0.1"), ext("A", "1.0.0"))

	res, err := fixedReconciler().Reconcile(registry, repository)
	require.NoError(t, err)

	assert.Equal(t, []string{"A@1.0.0", "B@1.0.1", "B@1.0.0", "C@0.1.0"}, ids(registry.Sources))
	assert.Equal(t, []string{"C", "B"}, res.ChangedIDs())
	assert.Equal(t, []string{"A"}, res.Unchanged)
}

func TestReconcileDoesNotAliasRepository(t *testing.T) {
	registry := newManifest("0.9.0")
	added := ext("A", "1.0.0")
	added.Badges = []*manifest.Badge{{Label: "New"}}
	repository := newManifest("0.9.0", added)

	_, err := fixedReconciler().Reconcile(registry, repository)
	require.NoError(t, err)

	registry.Sources[0].Badges[0].Label = "changed"
	assert.Equal(t, "New", repository.Sources[0].Badges[0].Label)
}

func TestReconcileNilManifest(t *testing.T) {
	_, err := fixedReconciler().Reconcile(nil, newManifest("0.9.0"))
	require.Error(t, err)
}
