package reports

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReservationsCSV(t *testing.T) {
	rows := []ReservationRow{
		{
			UserName: "Maria Silva", UserEmail: "maria@example.com", UserPhone: "11 99999-0000",
			EventTitle: "Mutirão", EventDate: time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC), EventTime: "09:00",
			Sequence: 1, Status: "confirmado", Attendance: "pendente",
			BookedAt: time.Date(2026, 5, 1, 14, 30, 0, 0, time.UTC),
		},
	}
	out, err := ReservationsCSV(rows)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Nome,Email,Telefone,Evento,Data,Hora,Senha,Status,Presença,Agendado em", lines[0])
	assert.Equal(t, "Maria Silva,maria@example.com,11 99999-0000,Mutirão,10/05/2026,09:00,1,confirmado,pendente,01/05/2026 14:30", lines[1])
}

func TestReservationsCSVEmpty(t *testing.T) {
	out, err := ReservationsCSV(nil)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	assert.Len(t, lines, 1, "header only")
}

func TestUsersCSV(t *testing.T) {
	rows := []UserRow{
		{Name: "João", Email: "joao@example.com", Status: "bloqueado",
			Bookings: 5, Presences: 2, LifetimeAbsences: 3, ConsecutiveAbsences: 0},
	}
	out, err := UsersCSV(rows)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "João,joao@example.com,,bloqueado,5,2,3,0", lines[1])
}

func TestPresenceCSVLeavesSignatureBlank(t *testing.T) {
	rows := []PresenceRow{
		{Sequence: 1, UserName: "Maria", UserPhone: "11 98888-1111", Attendance: "pendente"},
		{Sequence: 2, UserName: "José, Filho", Attendance: "confirmado"},
	}
	out, err := PresenceCSV(rows)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Senha,Nome,Telefone,Presença,Assinatura", lines[0])
	assert.True(t, strings.HasSuffix(lines[1], ","), "signature column stays empty")
	assert.Equal(t, `2,"José, Filho",,confirmado,`, lines[2], "names with commas are quoted")
}
