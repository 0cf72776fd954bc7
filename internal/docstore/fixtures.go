package docstore

import "time"

// SeedDemo loads a small fixture set into a memory store so the daemon has
// something to watch in dev mode.
func SeedDemo(m *Memory) {
	now := time.Now()

	m.PutUser(UserRecord{ID: "patient-1", FirstName: "Maria", LastName: "Santos", Role: "patient"})
	m.PutUser(UserRecord{ID: "patient-2", FirstName: "Jose", LastName: "Reyes", Role: "patient"})
	m.PutUser(UserRecord{ID: "specialist-1", FirstName: "Ana", LastName: "Cruz", Role: "specialist"})
	m.PutUser(UserRecord{ID: "generalist-1", FirstName: "Leo", LastName: "Garcia", Role: "specialist"})

	m.SetLastLogin("patient-1", "patient", now.Add(-48*time.Hour))
	m.SetLastLogin("specialist-1", "specialist", now.Add(-72*time.Hour))

	m.Put(CollectionAppointments, Document{
		ID: "appt-1",
		Fields: map[string]any{
			"patientId":        "patient-1",
			"doctorId":         "specialist-1",
			"status":           "confirmed",
			"appointmentDate":  now.Add(96 * time.Hour).Format("2006-01-02"),
			"appointmentTime":  "10:00",
			"createdAt":        now.Add(-36 * time.Hour).Format(time.RFC3339),
			"lastUpdated":      now.Add(-2 * time.Hour).Format(time.RFC3339),
			"patientFirstName": "Maria",
			"patientLastName":  "Santos",
			"doctorFirstName":  "Ana",
			"doctorLastName":   "Cruz",
		},
	})

	m.Put(CollectionReferrals, Document{
		ID: "ref-1",
		Fields: map[string]any{
			"patientId":             "patient-2",
			"assignedSpecialistId":  "specialist-1",
			"referringGeneralistId": "generalist-1",
			"status":                "pending",
			"appointmentDate":       now.Add(120 * time.Hour).Format("2006-01-02"),
			"appointmentTime":       "14:30",
			"createdAt":             now.Add(-12 * time.Hour).Format(time.RFC3339),
			"lastUpdated":           now.Add(-12 * time.Hour).Format(time.RFC3339),
		},
	})

	m.Put(CollectionDoctors, Document{
		ID: "specialist-1",
		Fields: map[string]any{
			"professionalFeeStatus": "pending",
			"professionalFee":       1500,
			"firstName":             "Ana",
			"lastName":              "Cruz",
			"lastUpdated":           now.Add(-6 * time.Hour).Format(time.RFC3339),
		},
	})
}
