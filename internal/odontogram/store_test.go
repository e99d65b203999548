package odontogram

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dentalclinic/m/domain"
	"dentalclinic/m/internal/database/dbtest"
)

const adultLayout = `{"teethState":{"11":{"top":"caries"}},"connections":[]}`

func newStore(t *testing.T) (*Store, int64) {
	t.Helper()
	db := dbtest.Open(t)
	user := dbtest.User(t, db, "ana@example.com")
	patient := dbtest.Patient(t, db, user, "30111222")
	return New(db, nil, nil), patient
}

func TestHasChildData(t *testing.T) {
	tests := []struct {
		name  string
		child string
		want  bool
	}{
		{"absent", ``, false},
		{"null", `null`, false},
		{"empty layout", `{"teethState":{},"connections":[]}`, false},
		{"empty object", `{}`, false},
		{"tooth state", `{"teethState":{"51":{"top":"x"}},"connections":[]}`, true},
		{"connection only", `{"teethState":{},"connections":[{"from":"51","to":"52"}]}`, true},
		{"malformed", `{"teethState":`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasChildData(json.RawMessage(tt.child)))
		})
	}
}

func TestCreateVersion_Sequence(t *testing.T) {
	ctx := context.Background()
	store, patient := newStore(t)

	latest, err := store.Latest(ctx, patient)
	require.NoError(t, err)
	assert.Nil(t, latest)

	for want := 1; want <= 3; want++ {
		got, err := store.CreateVersion(ctx, patient, Input{Adult: json.RawMessage(adultLayout), Observaciones: "control"})
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	versions, err := store.ListVersions(ctx, patient)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 2, 1}, versions)

	latest, err = store.Latest(ctx, patient)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, 3, latest.Version)
	assert.JSONEq(t, adultLayout, string(latest.Adult))
	assert.Equal(t, "control", latest.Observaciones)
	assert.Equal(t, "", latest.ElementosDentarios)
	assert.NotNil(t, latest.Treatments)
}

func TestCreateVersion_ChildStoredOnlyWithContent(t *testing.T) {
	ctx := context.Background()
	store, patient := newStore(t)

	_, err := store.CreateVersion(ctx, patient, Input{
		Adult: json.RawMessage(adultLayout),
		Child: json.RawMessage(`{"teethState":{},"connections":[]}`),
	})
	require.NoError(t, err)
	child := `{"teethState":{},"connections":[{"from":"51","to":"52"}]}`
	_, err = store.CreateVersion(ctx, patient, Input{Adult: json.RawMessage(adultLayout), Child: json.RawMessage(child)})
	require.NoError(t, err)

	var stored []*string
	require.NoError(t, store.db.Select(&stored, `SELECT formato_nino FROM odontogramas WHERE patient_id = ? ORDER BY version`, patient))
	require.Len(t, stored, 2)
	assert.Nil(t, stored[0])
	require.NotNil(t, stored[1])
	assert.JSONEq(t, child, *stored[1])

	v1, err := store.Version(ctx, patient, 1)
	require.NoError(t, err)
	assert.JSONEq(t, string(EmptyLayout), string(v1.Child))
}

func TestVersion_NotFound(t *testing.T) {
	store, patient := newStore(t)

	_, err := store.Version(context.Background(), patient, 7)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLatest_MalformedLayoutDegrades(t *testing.T) {
	ctx := context.Background()
	store, patient := newStore(t)
	_, err := store.db.Exec(`INSERT INTO odontogramas (patient_id, version, formato, formato_nino) VALUES (?, 1, ?, ?)`,
		patient, `{"teethState":`, `not json`)
	require.NoError(t, err)

	latest, err := store.Latest(ctx, patient)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, 1, latest.Version)
	assert.JSONEq(t, string(EmptyLayout), string(latest.Adult))
	assert.JSONEq(t, string(EmptyLayout), string(latest.Child))
}

func TestCreateVersion_Concurrent(t *testing.T) {
	ctx := context.Background()
	store, patient := newStore(t)

	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.CreateVersion(ctx, patient, Input{Adult: json.RawMessage(adultLayout)})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	versions, err := store.ListVersions(ctx, patient)
	require.NoError(t, err)
	assert.Equal(t, []int{8, 7, 6, 5, 4, 3, 2, 1}, versions)
}
