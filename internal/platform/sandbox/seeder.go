// Package sandbox generates synthetic referral-network data for development
// and demo environments. Output is reproducible: the same seed yields the
// same hospitals, staff, patients and referrals, down to their UUIDs, so a
// re-run against an already seeded database inserts nothing new.
package sandbox

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carebridge/carebridge/internal/platform/auth"
	"github.com/carebridge/carebridge/pkg/identifier"
)

// SeedConfig controls the volume of generated data.
type SeedConfig struct {
	Hospitals              int   `json:"hospitals"`
	DepartmentsPerHospital int   `json:"departmentsPerHospital"`
	DoctorsPerHospital     int   `json:"doctorsPerHospital"`
	SpecialistsPerHospital int   `json:"specialistsPerHospital"`
	PatientsPerHospital    int   `json:"patientsPerHospital"`
	Referrals              int   `json:"referrals"`
	Seed                   int64 `json:"seed"`
}

// DefaultSeedConfig returns a small network: enough rows to exercise every
// role and referral state without drowning a development database.
func DefaultSeedConfig() SeedConfig {
	return SeedConfig{
		Hospitals:              2,
		DepartmentsPerHospital: 3,
		DoctorsPerHospital:     2,
		SpecialistsPerHospital: 2,
		PatientsPerHospital:    5,
		Referrals:              8,
		Seed:                   1,
	}
}

// SeedResult summarises one generation run.
type SeedResult struct {
	Hospitals    int           `json:"hospitals"`
	Departments  int           `json:"departments"`
	Profiles     int           `json:"profiles"`
	Assignments  int           `json:"assignments"`
	Patients     int           `json:"patients"`
	Referrals    int           `json:"referrals"`
	StatusEvents int           `json:"statusEvents"`
	TotalRows    int           `json:"totalRows"`
	Duration     time.Duration `json:"duration"`
}

// Generated row types. These mirror the table columns the seeder fills;
// optional columns it never populates are omitted.

type Hospital struct {
	ID      uuid.UUID
	Name    string
	Address string
	City    string
	State   string
	Phone   string
}

type Department struct {
	ID          uuid.UUID
	HospitalID  uuid.UUID
	Name        string
	Description string
}

type Profile struct {
	ID             uuid.UUID
	Email          string
	FullName       string
	Role           string
	HospitalID     *uuid.UUID
	DepartmentID   *uuid.UUID
	Specialization *string
}

type Assignment struct {
	ID           uuid.UUID
	DoctorID     uuid.UUID
	HospitalID   uuid.UUID
	DepartmentID *uuid.UUID
}

type Patient struct {
	ID          uuid.UUID
	PatientID   string
	FirstName   string
	LastName    string
	DateOfBirth time.Time
	Gender      string
	Phone       string
	HospitalID  uuid.UUID
}

type Referral struct {
	ID                 uuid.UUID
	ReferralID         string
	PatientID          uuid.UUID
	ReferringDoctorID  uuid.UUID
	TargetSpecialistID *uuid.UUID
	OriginHospitalID   uuid.UUID
	TargetHospitalID   uuid.UUID
	TargetDepartmentID uuid.UUID
	Status             string
	Urgency            string
	Reason             string
	AppointmentDate    *time.Time
	CreatedAt          time.Time
}

type StatusEvent struct {
	ID         uuid.UUID
	ReferralID uuid.UUID
	FromStatus string
	ToStatus   string
	ChangedBy  uuid.UUID
	ChangedAt  time.Time
}

// Name and terminology pools.
var (
	firstNames = []string{
		"James", "Mary", "Robert", "Patricia", "John", "Jennifer", "Michael",
		"Linda", "David", "Elizabeth", "William", "Barbara", "Richard",
		"Susan", "Joseph", "Jessica", "Thomas", "Sarah", "Daniel", "Karen",
	}
	lastNames = []string{
		"Smith", "Johnson", "Williams", "Brown", "Jones", "Garcia", "Miller",
		"Davis", "Rodriguez", "Martinez", "Hernandez", "Lopez", "Wilson",
		"Anderson", "Taylor", "Thomas", "Moore", "Jackson", "Martin", "Lee",
	}
	hospitalNames = []string{
		"St. Mary's Medical Center", "Riverside General Hospital",
		"Lakeside Community Hospital", "Summit Regional Medical Center",
		"Cedar Grove Hospital", "Northgate University Hospital",
	}
	cities = []struct{ City, State string }{
		{"Springfield", "IL"}, {"Portland", "OR"}, {"Columbus", "OH"},
		{"Austin", "TX"}, {"Denver", "CO"}, {"Raleigh", "NC"},
	}
	specialties = []struct{ Name, Description string }{
		{"Cardiology", "Heart and vascular conditions"},
		{"Orthopedics", "Bone, joint and musculoskeletal care"},
		{"Neurology", "Brain, spine and nervous system"},
		{"Oncology", "Cancer diagnosis and treatment"},
		{"Dermatology", "Skin conditions"},
		{"Gastroenterology", "Digestive system disorders"},
	}
	referralReasons = []string{
		"Persistent chest pain on exertion, abnormal stress test",
		"Chronic knee pain, suspected meniscus tear on MRI",
		"Recurrent migraines unresponsive to first-line treatment",
		"Suspicious skin lesion requiring biopsy",
		"Elevated liver enzymes, further workup needed",
		"Abnormal screening result, specialist evaluation advised",
		"Post-operative follow-up for surgical site assessment",
		"Uncontrolled hypertension despite dual therapy",
	}
	genders = []string{"male", "female", "other"}
)

// DataGenerator produces synthetic rows from a seeded random source. UUIDs
// are drawn from the same source, which is what makes runs reproducible.
type DataGenerator struct {
	rng *rand.Rand
	now func() time.Time
	ids *identifier.Generator

	usedIdentifiers map[string]bool
}

// NewDataGenerator creates a generator. A zero seed falls back to the clock,
// which gives a different network every run.
func NewDataGenerator(seed int64) *DataGenerator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	return &DataGenerator{
		rng:             rng,
		now:             time.Now,
		ids:             identifier.NewGeneratorWith(time.Now, rng),
		usedIdentifiers: make(map[string]bool),
	}
}

// UUID returns a version-4-shaped UUID drawn from the seeded source.
func (g *DataGenerator) UUID() uuid.UUID {
	var b [16]byte
	g.rng.Read(b[:])
	b[6] = (b[6] & 0x0f) | 0x40
	b[8] = (b[8] & 0x3f) | 0x80
	return uuid.UUID(b)
}

func (g *DataGenerator) pick(n int) int {
	return g.rng.Intn(n)
}

// nextIdentifier draws business identifiers until one is unused within this
// run. Cross-run collisions are handled by the insert skipping the row.
func (g *DataGenerator) nextIdentifier(prefix string) string {
	for {
		id := g.ids.Next(prefix)
		if !g.usedIdentifiers[id] {
			g.usedIdentifiers[id] = true
			return id
		}
	}
}

func (g *DataGenerator) fullName() (first, last string) {
	return firstNames[g.pick(len(firstNames))], lastNames[g.pick(len(lastNames))]
}

func (g *DataGenerator) birthDate() time.Time {
	age := 18 + g.pick(70)
	days := g.pick(365)
	return g.now().UTC().AddDate(-age, 0, -days).Truncate(24 * time.Hour)
}

func (g *DataGenerator) phone() string {
	return fmt.Sprintf("+1-555-%03d-%04d", g.pick(1000), g.pick(10000))
}

// Seeder generates a coherent referral network: hospitals with departments,
// staff assigned to them, patients registered at them, and referrals that
// link all of the above with valid foreign keys.
type Seeder struct {
	gen    *DataGenerator
	config SeedConfig

	hospitals   []Hospital
	departments []Department
	profiles    []Profile
	assignments []Assignment
	patients    []Patient
	referrals   []Referral
	history     []StatusEvent
}

// NewSeeder creates a Seeder with the given config.
func NewSeeder(config SeedConfig) *Seeder {
	return &Seeder{gen: NewDataGenerator(config.Seed), config: config}
}

func (s *Seeder) Hospitals() []Hospital       { return s.hospitals }
func (s *Seeder) Departments() []Department   { return s.departments }
func (s *Seeder) Profiles() []Profile         { return s.profiles }
func (s *Seeder) Assignments() []Assignment   { return s.assignments }
func (s *Seeder) Patients() []Patient         { return s.patients }
func (s *Seeder) Referrals() []Referral       { return s.referrals }
func (s *Seeder) StatusEvents() []StatusEvent { return s.history }

// Generate builds the full network in memory. It always includes the fixed
// development admin profile so dev-mode requests resolve to a real actor.
func (s *Seeder) Generate() (*SeedResult, error) {
	start := time.Now()
	g := s.gen

	s.hospitals = nil
	s.departments = nil
	s.profiles = nil
	s.assignments = nil
	s.patients = nil
	s.referrals = nil
	s.history = nil

	adminID, err := uuid.Parse(auth.DevUserID)
	if err != nil {
		return nil, fmt.Errorf("parse dev admin id: %w", err)
	}
	s.profiles = append(s.profiles, Profile{
		ID:       adminID,
		Email:    "admin@carebridge.dev",
		FullName: "Dev Admin",
		Role:     "admin",
	})

	// Hospitals and their departments.
	staff := make([]hospitalStaff, s.config.Hospitals)

	for i := 0; i < s.config.Hospitals; i++ {
		loc := cities[i%len(cities)]
		h := Hospital{
			ID:      g.UUID(),
			Name:    hospitalNames[i%len(hospitalNames)],
			Address: fmt.Sprintf("%d Hospital Drive", 100+g.pick(900)),
			City:    loc.City,
			State:   loc.State,
			Phone:   g.phone(),
		}
		s.hospitals = append(s.hospitals, h)

		for j := 0; j < s.config.DepartmentsPerHospital; j++ {
			spec := specialties[j%len(specialties)]
			d := Department{
				ID:          g.UUID(),
				HospitalID:  h.ID,
				Name:        spec.Name,
				Description: spec.Description,
			}
			s.departments = append(s.departments, d)
			staff[i].departments = append(staff[i].departments, d)
		}

		for j := 0; j < s.config.DoctorsPerHospital; j++ {
			s.addStaffProfile(&staff[i], h.ID, "doctor", nil)
		}
		for j := 0; j < s.config.SpecialistsPerHospital; j++ {
			dept := staff[i].departments[j%len(staff[i].departments)]
			s.addStaffProfile(&staff[i], h.ID, "specialist", &dept)
		}

		for j := 0; j < s.config.PatientsPerHospital; j++ {
			first, last := g.fullName()
			hid := h.ID
			s.patients = append(s.patients, Patient{
				ID:          g.UUID(),
				PatientID:   g.nextIdentifier(identifier.PatientPrefix),
				FirstName:   first,
				LastName:    last,
				DateOfBirth: g.birthDate(),
				Gender:      genders[g.pick(len(genders))],
				Phone:       g.phone(),
				HospitalID:  hid,
			})
		}
	}

	// Referrals across the network.
	for i := 0; i < s.config.Referrals && len(s.patients) > 0; i++ {
		p := s.patients[g.pick(len(s.patients))]
		originIdx := s.hospitalIndex(p.HospitalID)
		if originIdx < 0 || len(staff[originIdx].doctors) == 0 {
			continue
		}
		doctor := staff[originIdx].doctors[g.pick(len(staff[originIdx].doctors))]

		targetIdx := g.pick(s.config.Hospitals)
		target := s.hospitals[targetIdx]
		if len(staff[targetIdx].departments) == 0 {
			continue
		}
		dept := staff[targetIdx].departments[g.pick(len(staff[targetIdx].departments))]

		createdAt := s.gen.now().UTC().Add(-time.Duration(g.pick(30*24)) * time.Hour)
		ref := Referral{
			ID:                 g.UUID(),
			ReferralID:         g.nextIdentifier(identifier.ReferralPrefix),
			PatientID:          p.ID,
			ReferringDoctorID:  doctor,
			OriginHospitalID:   p.HospitalID,
			TargetHospitalID:   target.ID,
			TargetDepartmentID: dept.ID,
			Status:             "pending",
			Urgency:            []string{"low", "medium", "medium", "high", "critical"}[g.pick(5)],
			Reason:             referralReasons[g.pick(len(referralReasons))],
			CreatedAt:          createdAt,
		}

		// Advance some referrals through the workflow so every state is
		// represented: roll 0-1 pending, 2 in_progress, 3 completed.
		roll := g.pick(4)
		if roll >= 2 && len(staff[targetIdx].specialists) > 0 {
			specialist := staff[targetIdx].specialists[g.pick(len(staff[targetIdx].specialists))]
			ref.TargetSpecialistID = &specialist
			ref.Status = "in_progress"
			appt := createdAt.Add(time.Duration(3+g.pick(14)) * 24 * time.Hour)
			ref.AppointmentDate = &appt
			s.history = append(s.history, StatusEvent{
				ID:         g.UUID(),
				ReferralID: ref.ID,
				FromStatus: "pending",
				ToStatus:   "in_progress",
				ChangedBy:  specialist,
				ChangedAt:  createdAt.Add(time.Duration(1+g.pick(48)) * time.Hour),
			})
			if roll == 3 {
				ref.Status = "completed"
				s.history = append(s.history, StatusEvent{
					ID:         g.UUID(),
					ReferralID: ref.ID,
					FromStatus: "in_progress",
					ToStatus:   "completed",
					ChangedBy:  specialist,
					ChangedAt:  appt.Add(2 * time.Hour),
				})
			}
		}
		s.referrals = append(s.referrals, ref)
	}

	result := &SeedResult{
		Hospitals:    len(s.hospitals),
		Departments:  len(s.departments),
		Profiles:     len(s.profiles),
		Assignments:  len(s.assignments),
		Patients:     len(s.patients),
		Referrals:    len(s.referrals),
		StatusEvents: len(s.history),
		Duration:     time.Since(start),
	}
	result.TotalRows = result.Hospitals + result.Departments + result.Profiles +
		result.Assignments + result.Patients + result.Referrals + result.StatusEvents
	return result, nil
}

// hospitalStaff tracks the staff generated for one hospital so referrals
// can pick consistent doctors and specialists.
type hospitalStaff struct {
	doctors     []uuid.UUID
	specialists []uuid.UUID
	departments []Department
}

func (s *Seeder) addStaffProfile(hs *hospitalStaff, hospitalID uuid.UUID, role string, dept *Department) {
	g := s.gen
	first, last := g.fullName()
	id := g.UUID()
	hid := hospitalID

	p := Profile{
		ID:         id,
		Email:      fmt.Sprintf("%s.%s.%s@carebridge.dev", role, firstLower(first), id.String()[:8]),
		FullName:   fmt.Sprintf("Dr. %s %s", first, last),
		Role:       role,
		HospitalID: &hid,
	}
	a := Assignment{ID: g.UUID(), DoctorID: id, HospitalID: hospitalID}
	if dept != nil {
		did := dept.ID
		p.DepartmentID = &did
		spec := dept.Name
		p.Specialization = &spec
		a.DepartmentID = &did
	}
	s.profiles = append(s.profiles, p)
	s.assignments = append(s.assignments, a)

	if role == "specialist" {
		hs.specialists = append(hs.specialists, id)
	} else {
		hs.doctors = append(hs.doctors, id)
	}
}

func (s *Seeder) hospitalIndex(id uuid.UUID) int {
	for i, h := range s.hospitals {
		if h.ID == id {
			return i
		}
	}
	return -1
}

func firstLower(s string) string {
	if s == "" {
		return s
	}
	b := []byte(s)
	if b[0] >= 'A' && b[0] <= 'Z' {
		b[0] += 'a' - 'A'
	}
	return string(b)
}

// Apply inserts the generated rows in foreign-key order inside one
// transaction. Every insert carries ON CONFLICT DO NOTHING, so re-applying
// the same seed against the same database is harmless. Returns the number
// of rows actually inserted.
func (s *Seeder) Apply(ctx context.Context, pool *pgxpool.Pool) (int, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin seed tx: %w", err)
	}
	defer tx.Rollback(ctx)

	inserted := 0
	exec := func(sql string, args ...any) error {
		tag, err := tx.Exec(ctx, sql, args...)
		if err != nil {
			return err
		}
		inserted += int(tag.RowsAffected())
		return nil
	}

	for _, h := range s.hospitals {
		if err := exec(`INSERT INTO hospitals (id, name, address, city, state, phone)
			VALUES ($1, $2, $3, $4, $5, $6) ON CONFLICT DO NOTHING`,
			h.ID, h.Name, h.Address, h.City, h.State, h.Phone); err != nil {
			return inserted, fmt.Errorf("seed hospital %s: %w", h.Name, err)
		}
	}
	for _, d := range s.departments {
		if err := exec(`INSERT INTO departments (id, hospital_id, name, description)
			VALUES ($1, $2, $3, $4) ON CONFLICT DO NOTHING`,
			d.ID, d.HospitalID, d.Name, d.Description); err != nil {
			return inserted, fmt.Errorf("seed department %s: %w", d.Name, err)
		}
	}
	for _, p := range s.profiles {
		if err := exec(`INSERT INTO profiles (id, email, full_name, role, hospital_id, department_id, specialization)
			VALUES ($1, $2, $3, $4, $5, $6, $7) ON CONFLICT DO NOTHING`,
			p.ID, p.Email, p.FullName, p.Role, p.HospitalID, p.DepartmentID, p.Specialization); err != nil {
			return inserted, fmt.Errorf("seed profile %s: %w", p.Email, err)
		}
	}
	for _, a := range s.assignments {
		if err := exec(`INSERT INTO doctor_hospitals (id, doctor_id, hospital_id)
			VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
			a.ID, a.DoctorID, a.HospitalID); err != nil {
			return inserted, fmt.Errorf("seed hospital assignment: %w", err)
		}
		if a.DepartmentID != nil {
			if err := exec(`INSERT INTO doctor_departments (id, doctor_id, department_id, hospital_id)
				VALUES ($1, $2, $3, $4) ON CONFLICT DO NOTHING`,
				s.gen.UUID(), a.DoctorID, *a.DepartmentID, a.HospitalID); err != nil {
				return inserted, fmt.Errorf("seed department assignment: %w", err)
			}
		}
	}
	for _, p := range s.patients {
		if err := exec(`INSERT INTO patients (id, patient_id, first_name, last_name, date_of_birth, gender, phone, hospital_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8) ON CONFLICT DO NOTHING`,
			p.ID, p.PatientID, p.FirstName, p.LastName, p.DateOfBirth, p.Gender, p.Phone, p.HospitalID); err != nil {
			return inserted, fmt.Errorf("seed patient %s: %w", p.PatientID, err)
		}
	}
	for _, r := range s.referrals {
		if err := exec(`INSERT INTO referrals (id, referral_id, patient_id, referring_doctor_id,
				target_specialist_id, origin_hospital_id, target_hospital_id, target_department_id,
				status, urgency, reason, appointment_date, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13) ON CONFLICT DO NOTHING`,
			r.ID, r.ReferralID, r.PatientID, r.ReferringDoctorID, r.TargetSpecialistID,
			r.OriginHospitalID, r.TargetHospitalID, r.TargetDepartmentID,
			r.Status, r.Urgency, r.Reason, r.AppointmentDate, r.CreatedAt); err != nil {
			return inserted, fmt.Errorf("seed referral %s: %w", r.ReferralID, err)
		}
	}
	for _, ev := range s.history {
		if err := exec(`INSERT INTO referral_status_history (id, referral_id, from_status, to_status, changed_by, changed_at)
			VALUES ($1, $2, $3, $4, $5, $6) ON CONFLICT DO NOTHING`,
			ev.ID, ev.ReferralID, ev.FromStatus, ev.ToStatus, ev.ChangedBy, ev.ChangedAt); err != nil {
			return inserted, fmt.Errorf("seed status history: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return inserted, fmt.Errorf("commit seed tx: %w", err)
	}
	return inserted, nil
}
