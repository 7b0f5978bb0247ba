package service

import (
	"context"
	"strings"
	"testing"

	"meeplehall/internal/models"
	"meeplehall/internal/notifications"
	"meeplehall/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarket_ListingValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seller := f.user(t, "vendor")

	_, err := f.market.CreateListing(ctx, seller.ID, ListingInput{Title: "Azul", PriceCents: 0, Condition: models.ConditionNew})
	requireCode(t, err, models.CodeValidation)

	_, err = f.market.CreateListing(ctx, seller.ID, ListingInput{Title: "Azul", PriceCents: 100, Condition: "mint"})
	requireCode(t, err, models.CodeValidation)

	item := f.listing(t, seller, "Azul", 2999, 2)
	assert.Equal(t, "USD", item.Currency)
	assert.Equal(t, models.TradeItemActive, item.Status)
}

func TestMarket_CartRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seller := f.user(t, "shop")
	buyer := f.user(t, "shopper")
	item := f.listing(t, seller, "Terraforming Mars", 5000, 2)

	_, err := f.market.AddToCart(ctx, seller.ID, item.ID, 1)
	requireCode(t, err, models.CodeValidation)

	cart, err := f.market.AddToCart(ctx, buyer.ID, item.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, cart.ItemCount)
	assert.Equal(t, int64(5000), cart.SubtotalCents)

	// Adding more than the stock caps at the stock.
	cart, err = f.market.AddToCart(ctx, buyer.ID, item.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, 2, cart.ItemCount)
	require.Len(t, cart.Sellers, 1)
	assert.Equal(t, seller.ID, cart.Sellers[0].SellerID)

	_, err = f.market.UpdateCartItem(ctx, buyer.ID, item.ID, 3)
	requireCode(t, err, models.CodeValidation)

	cart, err = f.market.UpdateCartItem(ctx, buyer.ID, item.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)

	_, err = f.market.RemoveFromCart(ctx, buyer.ID, item.ID)
	requireCode(t, err, models.CodeNotFound)
}

func TestMarket_RemoveListingDropsItFromCarts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seller := f.user(t, "trader")
	buyer := f.user(t, "collector")
	other := f.user(t, "other")
	item := f.listing(t, seller, "Gloomhaven", 9000, 1)

	_, err := f.market.AddToCart(ctx, buyer.ID, item.ID, 1)
	require.NoError(t, err)

	requireCode(t, f.market.RemoveListing(ctx, other.ID, item.ID), models.CodeForbidden)
	require.NoError(t, f.market.RemoveListing(ctx, seller.ID, item.ID))

	cart, err := f.market.GetCart(ctx, buyer.ID)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)

	_, err = f.market.GetListing(ctx, item.ID, buyer.ID)
	requireCode(t, err, models.CodeNotFound)
	_, err = f.market.GetListing(ctx, item.ID, seller.ID)
	require.NoError(t, err)
}

func TestMarket_ListListingsHidesInactiveFromOthers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seller := f.user(t, "lister")
	f.listing(t, seller, "Root", 4000, 1)
	removed := f.listing(t, seller, "Everdell", 4500, 1)
	require.NoError(t, f.market.RemoveListing(ctx, seller.ID, removed.ID))

	page, err := f.market.ListListings(ctx, ListListingsInput{Filter: repository.TradeItemFilter{SellerID: seller.ID, Status: "all"}, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)

	page, err = f.market.ListListings(ctx, ListListingsInput{Filter: repository.TradeItemFilter{SellerID: seller.ID, Status: "all"}, ViewerID: seller.ID, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)

	_, err = f.market.ListListings(ctx, ListListingsInput{Filter: repository.TradeItemFilter{Sort: "cheapest"}, Limit: 10})
	requireCode(t, err, models.CodeValidation)
}

func TestOrder_CheckoutSplitsBySellerAndMovesStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s1 := f.user(t, "seller1")
	s2 := f.user(t, "seller2")
	buyer := f.user(t, "buyer")
	rival := f.user(t, "rival")
	a := f.listing(t, s1, "Brass", 6000, 1)
	b := f.listing(t, s1, "Ark Nova", 5500, 3)
	c := f.listing(t, s2, "Cascadia", 3000, 1)

	for _, id := range []uint{a.ID, b.ID, c.ID} {
		_, err := f.market.AddToCart(ctx, buyer.ID, id, 1)
		require.NoError(t, err)
	}
	_, err := f.market.AddToCart(ctx, rival.ID, a.ID, 1)
	require.NoError(t, err)

	_, err = f.orders.Checkout(ctx, CheckoutInput{BuyerID: buyer.ID})
	requireCode(t, err, models.CodeValidation)

	orders, err := f.orders.Checkout(ctx, CheckoutInput{BuyerID: buyer.ID, ShippingAddress: "1 Meeple Way"})
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, s1.ID, orders[0].SellerID)
	assert.Equal(t, int64(11500), orders[0].TotalCents)
	assert.Len(t, orders[0].Items, 2)
	assert.Equal(t, int64(3000), orders[1].TotalCents)
	assert.True(t, strings.HasPrefix(orders[0].Number, "MH-"))
	assert.Equal(t, models.OrderPending, orders[0].Status)

	sold, err := f.market.GetListing(ctx, a.ID, s1.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TradeItemSold, sold.Status)
	assert.Equal(t, 0, sold.Quantity)
	left, err := f.market.GetListing(ctx, b.ID, s1.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, left.Quantity)

	cart, err := f.market.GetCart(ctx, buyer.ID)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	// The sold-out listing left the other buyer's cart too.
	rivalCart, err := f.market.GetCart(ctx, rival.ID)
	require.NoError(t, err)
	assert.Empty(t, rivalCart.Items)

	assert.Len(t, f.notificationsFor(t, s1.ID), 1)
	assert.Contains(t, f.rt.userEvents(s2.ID), notifications.EventOrderUpdated)
}

func TestOrder_CheckoutFailsAtomicallyWhenAnItemIsGone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seller := f.user(t, "maker")
	buyer := f.user(t, "taker")
	ok := f.listing(t, seller, "Dune Imperium", 5000, 1)
	gone := f.listing(t, seller, "Spirit Island", 6000, 1)

	for _, id := range []uint{ok.ID, gone.ID} {
		_, err := f.market.AddToCart(ctx, buyer.ID, id, 1)
		require.NoError(t, err)
	}
	require.NoError(t, f.db.Model(&models.TradeItem{}).Where("id = ?", gone.ID).Update("status", models.TradeItemSold).Error)

	_, err := f.orders.Checkout(ctx, CheckoutInput{BuyerID: buyer.ID, ShippingAddress: "2 Dice Rd"})
	requireCode(t, err, models.CodeConflict)
	assert.Contains(t, err.Error(), "Spirit Island")

	still, err := f.market.GetListing(ctx, ok.ID, seller.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, still.Quantity)
	assert.Equal(t, models.TradeItemActive, still.Status)
	cart, err := f.market.GetCart(ctx, buyer.ID)
	require.NoError(t, err)
	assert.Len(t, cart.Items, 2)
}

func TestOrder_StatusMachine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seller := f.user(t, "merchant")
	buyer := f.user(t, "patron")
	stranger := f.user(t, "passerby")
	item := f.listing(t, seller, "Scythe", 7000, 1)
	_, err := f.market.AddToCart(ctx, buyer.ID, item.ID, 1)
	require.NoError(t, err)
	orders, err := f.orders.Checkout(ctx, CheckoutInput{BuyerID: buyer.ID, ShippingAddress: "3 Board St"})
	require.NoError(t, err)
	id := orders[0].ID

	_, err = f.orders.UpdateStatus(ctx, stranger.ID, id, models.OrderPaid)
	requireCode(t, err, models.CodeNotFound)
	_, err = f.orders.UpdateStatus(ctx, seller.ID, id, models.OrderPaid)
	requireCode(t, err, models.CodeForbidden)
	_, err = f.orders.UpdateStatus(ctx, buyer.ID, id, models.OrderCompleted)
	requireCode(t, err, models.CodeConflict)
	_, err = f.orders.UpdateStatus(ctx, buyer.ID, id, "refunded")
	requireCode(t, err, models.CodeValidation)

	o, err := f.orders.UpdateStatus(ctx, buyer.ID, id, models.OrderPaid)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPaid, o.Status)
	o, err = f.orders.UpdateStatus(ctx, seller.ID, id, models.OrderShipped)
	require.NoError(t, err)
	assert.Equal(t, models.OrderShipped, o.Status)
	_, err = f.orders.UpdateStatus(ctx, buyer.ID, id, models.OrderCancelled)
	requireCode(t, err, models.CodeConflict)
	o, err = f.orders.UpdateStatus(ctx, buyer.ID, id, models.OrderCompleted)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCompleted, o.Status)

	_, err = f.orders.GetOrder(ctx, stranger.ID, id)
	requireCode(t, err, models.CodeNotFound)
}

func TestOrder_CancelRestoresStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seller := f.user(t, "dealer")
	buyer := f.user(t, "gamer")
	item := f.listing(t, seller, "Carcassonne", 2500, 1)
	_, err := f.market.AddToCart(ctx, buyer.ID, item.ID, 1)
	require.NoError(t, err)
	orders, err := f.orders.Checkout(ctx, CheckoutInput{BuyerID: buyer.ID, ShippingAddress: "4 Tile Ave"})
	require.NoError(t, err)

	_, err = f.orders.UpdateStatus(ctx, buyer.ID, orders[0].ID, models.OrderCancelled)
	require.NoError(t, err)

	back, err := f.market.GetListing(ctx, item.ID, seller.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TradeItemActive, back.Status)
	assert.Equal(t, 1, back.Quantity)

	mine, err := f.orders.ListMyOrders(ctx, ListOrdersInput{UserID: buyer.ID, Status: models.OrderCancelled, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, mine.Items, 1)
	sales, err := f.orders.ListSales(ctx, ListOrdersInput{UserID: seller.ID, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, sales.Items, 1)
}
