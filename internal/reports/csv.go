package reports

import (
	"bytes"
	"encoding/csv"
	"strconv"
)

const dateLayout = "02/01/2006"

// ReservationsCSV renders the reservations report.
func ReservationsCSV(rows []ReservationRow) ([]byte, error) {
	records := [][]string{{"Nome", "Email", "Telefone", "Evento", "Data", "Hora", "Senha", "Status", "Presença", "Agendado em"}}
	for _, r := range rows {
		records = append(records, []string{
			r.UserName, r.UserEmail, r.UserPhone,
			r.EventTitle, r.EventDate.Format(dateLayout), r.EventTime,
			strconv.Itoa(r.Sequence), r.Status, r.Attendance,
			r.BookedAt.Format("02/01/2006 15:04"),
		})
	}
	return renderCSV(records)
}

// UsersCSV renders the users reliability report.
func UsersCSV(rows []UserRow) ([]byte, error) {
	records := [][]string{{"Nome", "Email", "Telefone", "Status", "Agendamentos", "Presenças", "Faltas", "Faltas consecutivas"}}
	for _, r := range rows {
		records = append(records, []string{
			r.Name, r.Email, r.Phone, r.Status,
			strconv.Itoa(r.Bookings), strconv.Itoa(r.Presences),
			strconv.Itoa(r.LifetimeAbsences), strconv.Itoa(r.ConsecutiveAbsences),
		})
	}
	return renderCSV(records)
}

// PresenceCSV renders the printable check-in sheet. The last column is left
// blank for the attendee's signature.
func PresenceCSV(rows []PresenceRow) ([]byte, error) {
	records := [][]string{{"Senha", "Nome", "Telefone", "Presença", "Assinatura"}}
	for _, r := range rows {
		records = append(records, []string{
			strconv.Itoa(r.Sequence), r.UserName, r.UserPhone, r.Attendance, "",
		})
	}
	return renderCSV(records)
}

func renderCSV(records [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
