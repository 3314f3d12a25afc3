package itemstore

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"giftletter/internal/canvas/model"
)

type recorder struct {
	calls [][]*model.LetterItem
}

func (r *recorder) observe(items []*model.LetterItem) {
	r.calls = append(r.calls, items)
}

func note(id, color string, x, y float64) model.LetterItem {
	return model.LetterItem{ID: id, Type: model.ItemNote, Color: color, Position: model.Position{X: x, Y: y}, Rotation: 1.5}
}

func ids(items []*model.LetterItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func TestMoveNoteKeepsColor(t *testing.T) {
	rec := &recorder{}
	s := New(rec.observe)

	require.NoError(t, s.Add(note("n1", "yellow", 10, 10)))
	s.UpdatePosition("n1", model.Position{X: 50, Y: 80})

	items := s.Values()
	require.Len(t, items, 1)
	assert.Equal(t, model.Position{X: 50, Y: 80}, items[0].Position)
	assert.Equal(t, "yellow", items[0].Color)
	assert.Equal(t, 1.5, items[0].Rotation)
	assert.Len(t, rec.calls, 2)
}

func TestAddAddDelete(t *testing.T) {
	s := New(nil)
	require.NoError(t, s.Add(note("A", "", 0, 0)))
	require.NoError(t, s.Add(note("B", "", 0, 0)))
	s.Delete("A")
	assert.Equal(t, []string{"B"}, ids(s.Items()))
}

func TestUnknownIDIsNoop(t *testing.T) {
	rec := &recorder{}
	s := New(rec.observe)
	require.NoError(t, s.Add(note("n1", "blue", 1, 2)))
	before := s.Items()

	s.UpdatePosition("missing-id", model.Position{X: 9, Y: 9})
	require.NoError(t, s.UpdateField("missing-id", FieldContent, "x"))
	s.Delete("missing-id")

	after := s.Items()
	assert.Equal(t, before, after)
	assert.Same(t, before[0], after[0])
	assert.Len(t, rec.calls, 1, "only the add notified")
}

func TestAddRejectsInvalidItems(t *testing.T) {
	s := New(nil)
	require.NoError(t, s.Add(note("n1", "", 0, 0)))

	assert.ErrorIs(t, s.Add(note("n1", "", 0, 0)), model.ErrDuplicateID)
	assert.ErrorIs(t, s.Add(model.LetterItem{ID: "x", Type: "sticker"}), model.ErrInvalidType)
	assert.ErrorIs(t, s.Add(model.LetterItem{Type: model.ItemVoice}), model.ErrMissingID)
	assert.Equal(t, 1, s.Len())
}

func TestUpdateField(t *testing.T) {
	s := New(nil)
	empty := ""
	require.NoError(t, s.Add(model.LetterItem{ID: "p", Type: model.ItemPhoto, Content: "data:image/png;base64,AA", Caption: &empty}))
	require.NoError(t, s.Add(note("n", "pink", 0, 0)))

	require.NoError(t, s.UpdateField("p", FieldCaption, "summer"))
	require.NoError(t, s.UpdateField("n", FieldContent, "dear you"))
	assert.ErrorIs(t, s.UpdateField("n", FieldCaption, "nope"), ErrInvalidField)
	assert.ErrorIs(t, s.UpdateField("p", Field("rotation"), "90"), ErrInvalidField)

	p, ok := s.Get("p")
	require.True(t, ok)
	assert.Equal(t, "summer", *p.Caption)
	n, _ := s.Get("n")
	assert.Equal(t, "dear you", n.Content)
	assert.Equal(t, "pink", n.Color)
}

func TestMutationsPreserveUnrelatedIdentity(t *testing.T) {
	s := New(nil)
	require.NoError(t, s.Add(note("a", "", 0, 0)))
	require.NoError(t, s.Add(note("b", "", 0, 0)))
	require.NoError(t, s.Add(note("c", "", 0, 0)))
	before := s.Items()

	s.UpdatePosition("b", model.Position{X: 3, Y: 4})
	after := s.Items()

	assert.Same(t, before[0], after[0])
	assert.NotSame(t, before[1], after[1])
	assert.Same(t, before[2], after[2])
	assert.Equal(t, model.Position{}, before[1].Position, "previous collection is untouched")
	assert.Equal(t, []string{"a", "b", "c"}, ids(after))

	s.Delete("a")
	final := s.Items()
	assert.Same(t, after[1], final[0])
	assert.Same(t, after[2], final[1])
}

func TestRestoreDoesNotNotify(t *testing.T) {
	rec := &recorder{}
	s := New(rec.observe)

	require.NoError(t, s.Restore([]model.LetterItem{note("r1", "green", 1, 1), note("r2", "", 2, 2)}))
	assert.Equal(t, []string{"r1", "r2"}, ids(s.Items()))
	assert.Empty(t, rec.calls)

	require.NoError(t, s.Restore(nil))
	assert.Equal(t, 0, s.Len())
	assert.Empty(t, rec.calls)

	err := s.Restore([]model.LetterItem{note("d", "", 0, 0), note("d", "", 0, 0)})
	assert.Error(t, err)
}

// Random add/delete/move sequences end with exactly the added-minus-deleted
// items, with their last position, in insertion order.
func TestRandomSequencesMatchReference(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	for round := 0; round < 50; round++ {
		s := New(nil)
		var order []string
		positions := map[string]model.Position{}
		next := 0

		for step := 0; step < 60; step++ {
			switch op := rng.IntN(3); {
			case op == 0 || len(order) == 0:
				id := fmt.Sprintf("i%d", next)
				next++
				require.NoError(t, s.Add(note(id, "", 0, 0)))
				order = append(order, id)
				positions[id] = model.Position{}
			case op == 1:
				k := rng.IntN(len(order))
				s.Delete(order[k])
				delete(positions, order[k])
				order = append(order[:k:k], order[k+1:]...)
			default:
				id := order[rng.IntN(len(order))]
				pos := model.Position{X: rng.Float64() * 500, Y: rng.Float64() * 500}
				s.UpdatePosition(id, pos)
				positions[id] = pos
			}
		}

		got := s.Values()
		require.Len(t, got, len(order))
		for i, it := range got {
			assert.Equal(t, order[i], it.ID)
			assert.Equal(t, positions[it.ID], it.Position)
		}
	}
}
