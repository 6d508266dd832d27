/*
seed.go - Demo classroom loader for testing and demonstrations

PURPOSE:
  Populates the acting teacher's classroom with a realistic roster, rule
  templates, and store items so the API can be exercised immediately.
  Seeding is additive and owner-scoped: it never touches other teachers'
  data and never clears anything.

USAGE VIA API:
  POST /api/demo/seed

NOTE:
  Intended for development and demo environments. Production deployments
  should leave CLASSPOINTS_SEED_DEMO unset.

SEE ALSO:
  - handlers.go: The rest of the API surface
  - cmd/server/main.go: Startup seeding via config
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/warp/classpoints/classroom"
)

// demoRoster is the seeded class list, grouped by table. A slice keeps
// the seeded student numbers stable across runs.
var demoRoster = []struct {
	Group    string
	Students []string
}{
	{"Red Table", []string{"Ava Chen", "Liam Park", "Maya Okafor", "Noah Reyes"}},
	{"Blue Table", []string{"Ella Novak", "Omar Haddad", "Sofia Lindgren", "Theo Brandt"}},
}

var demoRules = []struct {
	Name   string
	Points int
}{
	{"Great participation", 2},
	{"Helped a classmate", 3},
	{"Homework complete", 1},
	{"Off task", -1},
	{"Missing homework", -2},
}

var demoItems = []struct {
	Name  string
	Cost  int
	Stock *int
}{
	{"Homework pass", 10, intPtr(5)},
	{"Choose your seat", 5, nil},
	{"Line leader for a day", 3, nil},
	{"Sticker pack", 4, intPtr(20)},
}

// SeedDemo loads the demo classroom for the acting teacher.
// POST /api/demo/seed
func (h *Handler) SeedDemo(w http.ResponseWriter, r *http.Request) {
	if err := SeedClassroom(r.Context(), h.Store, ownerID(r)); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "seeded"})
}

// SeedClassroom writes the demo roster, rules, and store items for one
// owner in a single atomic unit.
func SeedClassroom(ctx context.Context, store classroom.Store, ownerID string) error {
	return store.WithTx(ctx, func(s classroom.Store) error {
		number := 1
		for _, table := range demoRoster {
			g := classroom.Group{ID: uuid.NewString(), OwnerID: ownerID, Name: table.Group}
			if err := s.SaveGroup(ctx, g); err != nil {
				return err
			}
			for _, name := range table.Students {
				st := classroom.Student{
					ID:      uuid.NewString(),
					OwnerID: ownerID,
					Name:    name,
					Number:  fmt.Sprintf("%02d", number),
					GroupID: g.ID,
				}
				if err := s.SaveStudent(ctx, st); err != nil {
					return err
				}
				number++
			}
		}

		for _, dr := range demoRules {
			typ := classroom.RecordAdd
			if dr.Points < 0 {
				typ = classroom.RecordSubtract
			}
			rule := classroom.PointRule{
				ID:       uuid.NewString(),
				OwnerID:  ownerID,
				Name:     dr.Name,
				Points:   dr.Points,
				Type:     typ,
				IsActive: true,
			}
			if err := s.SaveRule(ctx, rule); err != nil {
				return err
			}
		}

		for _, di := range demoItems {
			it := classroom.StoreItem{
				ID:       uuid.NewString(),
				OwnerID:  ownerID,
				Name:     di.Name,
				Cost:     di.Cost,
				Stock:    di.Stock,
				IsActive: true,
			}
			if err := s.SaveItem(ctx, it); err != nil {
				return err
			}
		}
		return nil
	})
}

func intPtr(n int) *int { return &n }
