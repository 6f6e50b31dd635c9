package tech_test

import (
	"context"
	"testing"
	"time"

	"github.com/trezcool/odin/core"
	"github.com/trezcool/odin/core/roster"
	"github.com/trezcool/odin/core/tech"
	inmemdb "github.com/trezcool/odin/storage/database/inmem"
	testutil "github.com/trezcool/odin/tests"
)

type fixture struct {
	svc        *tech.Service
	repo       tech.Repository
	rosterRepo roster.Repository
	teacher    roster.User
	students   []roster.User
	section    roster.Section
}

func newFixture(t *testing.T, studentCount int) *fixture {
	t.Helper()

	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("inmemdb.Open() failed: %v", err)
	}
	repo := inmemdb.NewTechRepository(db)
	rosterRepo := inmemdb.NewRosterRepository(db)

	f := &fixture{
		svc:        tech.NewService(db, repo, rosterRepo),
		repo:       repo,
		rosterRepo: rosterRepo,
		teacher:    testutil.CreateUser(t, rosterRepo, "John", "jdoe@school.cd", roster.RoleTeacher, true),
	}

	ids := make([]string, 0, studentCount)
	for i := 0; i < studentCount; i++ {
		usr := testutil.CreateUser(t, rosterRepo, "Student", "a"+string(rune('1'+i))+"@school.cd", roster.RoleStudent, true)
		f.students = append(f.students, usr)
		ids = append(ids, usr.ID)
	}
	f.section = testutil.CreateSection(t, rosterRepo, "CS-101", ids...)
	return f
}

func (f *fixture) attendanceByStudent(t *testing.T, techID string) map[string]bool {
	t.Helper()
	rows, err := f.repo.QueryAttendanceByTech(context.Background(), techID)
	if err != nil {
		t.Fatalf("QueryAttendanceByTech() failed: %v", err)
	}
	byStudent := make(map[string]bool, len(rows))
	for _, row := range rows {
		byStudent[row.StudentID] = row.Attended
	}
	return byStudent
}

func TestService_Create_coverage(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()
	missed := f.students[1]

	sess, err := f.svc.Create(ctx, tech.NewTech{
		TeacherID: f.teacher.ID,
		SectionID: f.section.ID,
		Date:      time.Now().UTC(),
		Summary:   "Pointers",
		MissedIDs: []string{missed.ID},
	})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	// one attendance row per enrolled student
	byStudent := f.attendanceByStudent(t, sess.ID)
	if len(byStudent) != len(f.students) {
		t.Fatalf("len(attendance) = %v; want %v", len(byStudent), len(f.students))
	}
	for _, usr := range f.students {
		attended, ok := byStudent[usr.ID]
		if !ok {
			t.Fatalf("no attendance row for student %v", usr.ID)
		}
		if want := usr.ID != missed.ID; attended != want {
			t.Errorf("attendance for %v = %v; want %v", usr.ID, attended, want)
		}
	}
}

func TestService_Create_invalidMissList(t *testing.T) {
	f := newFixture(t, 2)
	outsider := testutil.CreateUser(t, f.rosterRepo, "Out", "a9@school.cd", roster.RoleStudent, true)

	_, err := f.svc.Create(context.Background(), tech.NewTech{
		TeacherID: f.teacher.ID,
		SectionID: f.section.ID,
		Date:      time.Now().UTC(),
		Summary:   "Pointers",
		MissedIDs: []string{outsider.ID},
	})
	vErr, ok := err.(*core.ValidationError)
	if !ok {
		t.Fatalf("Create() error = %v; want validation error", err)
	}
	if len(vErr.Fields) == 0 || vErr.Fields[0].Field != "miss_tech" {
		t.Errorf("Create() validation fields = %+v; want miss_tech", vErr.Fields)
	}

	// nothing committed
	techs, err := f.svc.Query(context.Background(), nil)
	if err != nil {
		t.Fatalf("Query() failed: %v", err)
	}
	if len(techs) != 0 {
		t.Errorf("len(techs) = %v; want 0", len(techs))
	}
}

func TestService_Update_recomputesCoverage(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()
	first, second := f.students[0], f.students[1]

	sess, err := f.svc.Create(ctx, tech.NewTech{
		TeacherID: f.teacher.ID,
		SectionID: f.section.ID,
		Date:      time.Now().UTC(),
		Summary:   "Pointers",
		MissedIDs: []string{first.ID},
	})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	// a student enrolled after the session was recorded
	late := testutil.CreateUser(t, f.rosterRepo, "Late", "a8@school.cd", roster.RoleStudent, true)
	f.section.StudentIDs = append(f.section.StudentIDs, late.ID)
	f.section.UpdatedAt = time.Now().UTC()
	if _, err = f.rosterRepo.UpdateSection(ctx, f.section); err != nil {
		t.Fatalf("UpdateSection() failed: %v", err)
	}

	sess, err = f.svc.Update(ctx, sess.ID, tech.UpdateTech{
		Date:      sess.Date,
		Summary:   sess.Summary,
		MissedIDs: []string{second.ID},
	})
	if err != nil {
		t.Fatalf("Update() failed: %v", err)
	}

	byStudent := f.attendanceByStudent(t, sess.ID)
	if len(byStudent) != 4 {
		t.Fatalf("len(attendance) = %v; want 4", len(byStudent))
	}
	if byStudent[first.ID] != true {
		t.Error("previously missed student was not flipped to attended")
	}
	if byStudent[second.ID] != false {
		t.Error("newly missed student was not flipped to missed")
	}
	if attended, ok := byStudent[late.ID]; !ok || !attended {
		t.Error("newly enrolled student did not get an attendance row")
	}
}

func TestService_Update_nilMissListKeepsCurrent(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()
	missed := f.students[0]

	sess, err := f.svc.Create(ctx, tech.NewTech{
		TeacherID: f.teacher.ID,
		SectionID: f.section.ID,
		Date:      time.Now().UTC(),
		Summary:   "Pointers",
		MissedIDs: []string{missed.ID},
	})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	sess, err = f.svc.Update(ctx, sess.ID, tech.UpdateTech{
		Date:    sess.Date,
		Summary: "Pointers II",
	})
	if err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
	if len(sess.MissedIDs) != 1 || sess.MissedIDs[0] != missed.ID {
		t.Errorf("MissedIDs = %v; want [%v]", sess.MissedIDs, missed.ID)
	}
	if byStudent := f.attendanceByStudent(t, sess.ID); byStudent[missed.ID] {
		t.Error("missed student flipped to attended on unrelated update")
	}
}

func TestService_Delete_cascades(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	sess, err := f.svc.Create(ctx, tech.NewTech{
		TeacherID: f.teacher.ID,
		SectionID: f.section.ID,
		Date:      time.Now().UTC(),
		Summary:   "Pointers",
	})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	if err = f.svc.Delete(ctx, sess.ID); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if _, err = f.svc.GetByID(ctx, sess.ID); err != tech.ErrNotFound {
		t.Errorf("GetByID() error = %v; want %v", err, tech.ErrNotFound)
	}
	for _, usr := range f.students {
		rows, err := f.repo.QueryAttendanceByStudent(ctx, usr.ID)
		if err != nil {
			t.Fatalf("QueryAttendanceByStudent() failed: %v", err)
		}
		if len(rows) != 0 {
			t.Errorf("orphaned attendance rows for %v: %v", usr.ID, len(rows))
		}
	}
}

func TestService_StudentAttendance_ordering(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	student := f.students[0]
	now := time.Now().UTC()

	// recorded out of chronological order
	for _, date := range []time.Time{now, now.Add(-48 * time.Hour), now.Add(-24 * time.Hour)} {
		if _, err := f.svc.Create(ctx, tech.NewTech{
			TeacherID: f.teacher.ID,
			SectionID: f.section.ID,
			Date:      date,
			Summary:   "Session",
		}); err != nil {
			t.Fatalf("Create() failed: %v", err)
		}
	}

	history, err := f.svc.StudentAttendance(ctx, student.ID)
	if err != nil {
		t.Fatalf("StudentAttendance() failed: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("len(history) = %v; want 3", len(history))
	}
	for i := 1; i < len(history); i++ {
		if history[i].Tech.Date.Before(history[i-1].Tech.Date) {
			t.Errorf("history not ordered by date: %v before %v", history[i].Tech.Date, history[i-1].Tech.Date)
		}
	}
}
