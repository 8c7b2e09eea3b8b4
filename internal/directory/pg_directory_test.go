package directory

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/carebook-scheduling/internal/appointment"
)

var providerColumns = []string{
	"id", "first_name", "last_name", "title", "specialty", "phone", "email",
	"location", "address", "bio", "rating", "review_count", "accepting_new_patients", "avatar_url", "appointment_types",
}

func providerRow(id int64, last, specialty string, rating float64) []any {
	return []any{
		id, "Test", last, "MD", specialty, "(555) 000-0000", last + "@carebook.com",
		"Clinic", "1 Main St", "", rating, 10, true, "", []string{"Sick Visit"},
	}
}

func newMockDirectory(t *testing.T) (pgxmock.PgxPoolIface, *PgDirectory) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, newPgDirectoryWithConn(mock)
}

func TestPgDirectoryProvider(t *testing.T) {
	mock, dir := newMockDirectory(t)

	mock.ExpectQuery("FROM providers p").
		WithArgs(int64(3)).
		WillReturnRows(pgxmock.NewRows(providerColumns).AddRow(providerRow(3, "Rodriguez", "Dermatology", 4.7)...))
	mock.ExpectQuery("FROM providers p").
		WithArgs(int64(42)).
		WillReturnRows(pgxmock.NewRows(providerColumns))

	p, err := dir.Provider(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "Rodriguez", p.LastName)
	assert.Equal(t, []string{"Sick Visit"}, p.AppointmentTypes)

	_, err = dir.Provider(context.Background(), 42)
	require.ErrorIs(t, err, appointment.ErrProviderNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgDirectoryAppointmentTypeMissing(t *testing.T) {
	mock, dir := newMockDirectory(t)
	mock.ExpectQuery("FROM appointment_types").
		WithArgs(int64(11)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "description", "duration_minutes", "category"}))

	_, err := dir.AppointmentType(context.Background(), 11)
	require.ErrorIs(t, err, appointment.ErrAppointmentTypeNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgDirectorySearch(t *testing.T) {
	mock, dir := newMockDirectory(t)
	mock.ExpectQuery("ORDER BY p.rating DESC").
		WithArgs("heart", "Cardiology").
		WillReturnRows(pgxmock.NewRows(providerColumns).
			AddRow(providerRow(2, "Chen", "Cardiology", 4.8)...))

	got, err := dir.Search(context.Background(), "heart", "Cardiology")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(2), got[0].ID)
	assert.InDelta(t, 4.8, got[0].Rating, 0.001)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgDirectorySpecialties(t *testing.T) {
	mock, dir := newMockDirectory(t)
	mock.ExpectQuery("SELECT DISTINCT specialty").
		WillReturnRows(pgxmock.NewRows([]string{"specialty"}).AddRow("Cardiology").AddRow("Neurology"))

	got, err := dir.Specialties(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Cardiology", "Neurology"}, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgDirectorySeed(t *testing.T) {
	mock, dir := newMockDirectory(t)
	types := ReferenceAppointmentTypes()[:2]
	providers := ReferenceProviders()[:2]

	for _, at := range types {
		mock.ExpectExec("INSERT INTO appointment_types").
			WithArgs(at.Name, at.Description, at.DurationMinutes, at.Category).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	mock.ExpectExec("INSERT INTO providers").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), "sarah.johnson@carebook.com",
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO providers").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), "michael.chen@carebook.com",
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectExec("INSERT INTO provider_appointment_types").
		WillReturnResult(pgxmock.NewResult("INSERT", 20))

	n, err := dir.Seed(context.Background(), providers, types)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.NoError(t, mock.ExpectationsWereMet())
}
