package cart

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"maritime-marketplace/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vts() models.Product {
	return models.Product{ID: 1, Name: "Vessel Tracking Service", Price: decimal.RequireFromString("250.00"), CreditCost: 25, Type: models.ProductTypeVTS}
}

func areaAlert() models.Product {
	return models.Product{ID: 2, Name: "Area Alert", Price: decimal.RequireFromString("100.00"), CreditCost: 10, Type: models.ProductTypeMaritimeAlert}
}

func sequentialIDs() Option {
	n := 0
	return WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("item-%d", n)
	})
}

func TestAddItemDefaultsQuantity(t *testing.T) {
	s := NewStore(State{}, sequentialIDs())

	state := s.Dispatch(AddItem{Product: vts()})

	require.Equal(t, 1, state.Len())
	item := state.Items()[0]
	assert.Equal(t, "item-1", item.ItemID)
	assert.Equal(t, 1, item.Quantity)
	assert.Equal(t, vts().Name, item.Product.Name)
}

func TestAddUnconfiguredProductMerges(t *testing.T) {
	s := NewStore(State{}, sequentialIDs())

	s.Dispatch(AddItem{Product: vts(), Quantity: 2})
	s.Dispatch(AddItem{Product: areaAlert()})
	state := s.Dispatch(AddItem{Product: vts(), Quantity: 3})

	require.Equal(t, 2, state.Len())
	items := state.Items()
	assert.Equal(t, "item-1", items[0].ItemID)
	assert.Equal(t, 5, items[0].Quantity)
	assert.Equal(t, "item-2", items[1].ItemID)
}

func TestAddConfiguredProductAppends(t *testing.T) {
	s := NewStore(State{}, sequentialIDs())
	price := decimal.RequireFromString("180.00")
	credits := int64(18)
	cfg := &models.Configuration{AlertType: "AREA", TrackingCriteria: []string{"AIS_GAP"}}

	s.Dispatch(AddItem{Product: areaAlert()})
	state := s.Dispatch(AddItem{Product: areaAlert(), Configuration: cfg, ConfiguredPrice: &price, ConfiguredCreditCost: &credits})
	state = Reduce(state, AddItem{ItemID: "item-x", Product: areaAlert(), Configuration: cfg, ConfiguredPrice: &price})

	require.Equal(t, 3, state.Len())
	items := state.Items()
	assert.Equal(t, 1, items[0].Quantity)
	assert.True(t, price.Equal(items[1].UnitPrice()))
	assert.Equal(t, int64(18), items[1].UnitCredits())
	assert.Equal(t, "item-x", items[2].ItemID)

	// a later unconfigured add still merges into the unconfigured line only
	state = Reduce(state, AddItem{ItemID: "item-y", Product: areaAlert()})
	assert.Equal(t, 3, state.Len())
	assert.Equal(t, 2, state.Items()[0].Quantity)
	assert.Equal(t, 1, state.Items()[1].Quantity)
}

func TestAddDuplicateItemIDIgnored(t *testing.T) {
	cfg := &models.Configuration{AlertType: "AREA"}
	state := Reduce(State{}, AddItem{ItemID: "a", Product: areaAlert(), Configuration: cfg})
	next := Reduce(state, AddItem{ItemID: "a", Product: vts()})

	assert.Equal(t, 1, next.Len())
	assert.Equal(t, areaAlert().ID, next.Items()[0].Product.ID)
}

func TestUpdateItemQuantityClamps(t *testing.T) {
	state := Reduce(State{}, AddItem{ItemID: "a", Product: vts(), Quantity: 4})

	state = Reduce(state, UpdateItemQuantity{ItemID: "a", Quantity: 7})
	assert.Equal(t, 7, state.Items()[0].Quantity)

	state = Reduce(state, UpdateItemQuantity{ItemID: "a", Quantity: 0})
	assert.Equal(t, 1, state.Items()[0].Quantity)

	state = Reduce(state, UpdateItemQuantity{ItemID: "a", Quantity: -3})
	assert.Equal(t, 1, state.Items()[0].Quantity)

	state = Reduce(state, UpdateItemQuantity{ItemID: "a", Quantity: math.MaxInt})
	assert.Equal(t, models.MaxQuantity, state.Items()[0].Quantity)
}

func TestAddItemSaturatesQuantity(t *testing.T) {
	s := NewStore(State{}, sequentialIDs())

	state := s.Dispatch(AddItem{Product: vts(), Quantity: math.MaxInt})
	assert.Equal(t, models.MaxQuantity, state.Items()[0].Quantity)

	// merging into a full line neither wraps nor grows past the limit
	state = s.Dispatch(AddItem{Product: vts(), Quantity: math.MaxInt})
	require.Equal(t, 1, state.Len())
	assert.Equal(t, models.MaxQuantity, state.Items()[0].Quantity)
	assert.Equal(t, int64(models.MaxQuantity)*vts().CreditCost, state.TotalCredits())

	state = s.Dispatch(AddItem{Product: vts(), Quantity: 5})
	assert.Equal(t, models.MaxQuantity, state.Items()[0].Quantity)
	assert.Positive(t, state.TotalCredits())
}

func TestUnknownItemIsNoop(t *testing.T) {
	state := Reduce(State{}, AddItem{ItemID: "a", Product: vts(), Quantity: 2})

	for _, action := range []Action{
		UpdateItemQuantity{ItemID: "missing", Quantity: 3},
		DecrementItem{ItemID: "missing"},
		RemoveItem{ItemID: "missing"},
	} {
		next := Reduce(state, action)
		assert.Equal(t, state.Items(), next.Items())
	}
}

func TestDecrementRemovesAtOne(t *testing.T) {
	state := Reduce(State{}, AddItem{ItemID: "a", Product: vts(), Quantity: 2})

	state = Reduce(state, DecrementItem{ItemID: "a"})
	require.Equal(t, 1, state.Len())
	assert.Equal(t, 1, state.Items()[0].Quantity)

	state = Reduce(state, DecrementItem{ItemID: "a"})
	assert.Equal(t, 0, state.Len())
}

func TestRemovePreservesOrder(t *testing.T) {
	state := State{}
	for i, id := range []string{"a", "b", "c"} {
		state = Reduce(state, AddItem{ItemID: id, Product: models.Product{ID: int64(i + 1)}})
	}

	state = Reduce(state, RemoveItem{ItemID: "b"})

	ids := []string{}
	for _, item := range state.Items() {
		ids = append(ids, item.ItemID)
	}
	assert.Equal(t, []string{"a", "c"}, ids)
}

func TestTotals(t *testing.T) {
	price := decimal.RequireFromString("80.50")
	credits := int64(8)
	state := Reduce(State{}, AddItem{ItemID: "a", Product: vts(), Quantity: 2})
	state = Reduce(state, AddItem{ItemID: "b", Product: areaAlert(), Quantity: 3, ConfiguredPrice: &price, ConfiguredCreditCost: &credits})

	assert.Equal(t, 5, state.ItemCount())
	assert.True(t, decimal.RequireFromString("741.50").Equal(state.TotalPrice()), state.TotalPrice().String())
	assert.Equal(t, int64(74), state.TotalCredits())
}

func TestClearCart(t *testing.T) {
	s := NewStore(State{}, sequentialIDs())
	s.Dispatch(AddItem{Product: vts(), Quantity: 2})
	s.Dispatch(AddItem{Product: areaAlert()})

	state := s.Dispatch(ClearCart{})

	assert.Equal(t, 0, state.Len())
	assert.Equal(t, 0, state.ItemCount())
	assert.True(t, state.TotalPrice().IsZero())
	assert.Equal(t, int64(0), state.TotalCredits())
	assert.Empty(t, state.Items())
}

func TestReduceDoesNotMutateInput(t *testing.T) {
	before := Reduce(State{}, AddItem{ItemID: "a", Product: vts(), Quantity: 2})
	snapshot := before.Items()

	_ = Reduce(before, UpdateItemQuantity{ItemID: "a", Quantity: 9})
	_ = Reduce(before, AddItem{ItemID: "b", Product: areaAlert()})
	_ = Reduce(before, RemoveItem{ItemID: "a"})

	assert.Equal(t, snapshot, before.Items())
}

func TestNewStateDropsInvalidLines(t *testing.T) {
	state := NewState([]models.CartItem{
		{ItemID: "a", Product: vts(), Quantity: 1},
		{ItemID: "a", Product: areaAlert(), Quantity: 1},
		{ItemID: "", Product: vts(), Quantity: 1},
		{ItemID: "b", Product: vts(), Quantity: 0},
		{ItemID: "c", Product: areaAlert(), Quantity: math.MaxInt},
	})

	require.Equal(t, 2, state.Len())
	assert.Equal(t, vts().ID, state.Items()[0].Product.ID)
	assert.Equal(t, models.MaxQuantity, state.Items()[1].Quantity)
}

func TestSubscribeReceivesSnapshots(t *testing.T) {
	s := NewStore(State{}, sequentialIDs())
	var counts []int
	s.Subscribe(func(st State) { counts = append(counts, st.ItemCount()) })

	s.Dispatch(AddItem{Product: vts()})
	s.Dispatch(AddItem{Product: vts(), Quantity: 2})
	s.Dispatch(ClearCart{})

	assert.Equal(t, []int{1, 3, 0}, counts)
}

func TestRandomSequencesKeepInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	s := NewStore(State{}, sequentialIDs())
	products := []models.Product{vts(), areaAlert(), {ID: 3, Price: decimal.RequireFromString("9.99"), CreditCost: 1}}
	price := decimal.RequireFromString("42.00")

	for step := 0; step < 2000; step++ {
		state := s.Snapshot()
		items := state.Items()
		pick := func() string {
			if len(items) == 0 || rng.Intn(10) == 0 {
				return "missing"
			}
			return items[rng.Intn(len(items))].ItemID
		}

		switch rng.Intn(6) {
		case 0:
			add := AddItem{Product: products[rng.Intn(len(products))], Quantity: rng.Intn(4) - 1}
			if rng.Intn(2) == 0 {
				add.ConfiguredPrice = &price
				add.Configuration = &models.Configuration{AlertType: "AREA"}
			}
			s.Dispatch(add)
		case 1:
			s.Dispatch(UpdateItemQuantity{ItemID: pick(), Quantity: rng.Intn(6) - 2})
		case 2:
			s.Dispatch(DecrementItem{ItemID: pick()})
		case 3:
			s.Dispatch(RemoveItem{ItemID: pick()})
		case 4:
			if rng.Intn(20) == 0 {
				s.Dispatch(ClearCart{})
			}
		case 5:
			id := pick()
			before, ok := state.Find(id)
			next := s.Dispatch(UpdateItemQuantity{ItemID: id, Quantity: rng.Intn(5) + 1})
			if ok {
				after, found := next.Find(id)
				require.True(t, found)
				assert.True(t, before.UnitPrice().Equal(after.UnitPrice()))
			}
		}

		seen := map[string]bool{}
		total := decimal.Zero
		for _, item := range s.Snapshot().Items() {
			require.False(t, seen[item.ItemID], "duplicate item id %s", item.ItemID)
			seen[item.ItemID] = true
			require.GreaterOrEqual(t, item.Quantity, 1)
			require.True(t, item.LinePrice().Equal(item.UnitPrice().Mul(decimal.NewFromInt(int64(item.Quantity)))))
			total = total.Add(item.LinePrice())
		}
		require.True(t, total.Equal(s.Snapshot().TotalPrice()))
	}
}
