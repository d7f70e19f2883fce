package http

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/fjod/qahwa-storefront/internal/auth"
	"github.com/fjod/qahwa-storefront/internal/cache"
	"github.com/fjod/qahwa-storefront/internal/catalog"
	"github.com/fjod/qahwa-storefront/internal/checkout"
	"github.com/fjod/qahwa-storefront/internal/domain"
	"github.com/fjod/qahwa-storefront/internal/repository"
	"github.com/fjod/qahwa-storefront/internal/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testApp struct {
	handler http.Handler
	repo    *repository.Repository
	carts   *service.CartService
}

func setupApp(t *testing.T) *testApp {
	t.Helper()

	repo, err := repository.NewRepository(":memory:")
	require.NoError(t, err)
	require.NoError(t, repo.RunMigrations())
	t.Cleanup(func() { _ = repo.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	products := catalog.NewService(repo, log)
	carts := service.NewCartService(repo, cache.NopCache{}, log)
	flow := checkout.NewService(carts, log)
	sessions := auth.NewService(0, log)
	t.Cleanup(func() {
		products.Close()
		carts.Close()
		flow.Close()
		sessions.Close()
	})

	return &testApp{
		handler: NewRouter(RouterConfig{
			Catalog:        products,
			Carts:          carts,
			Checkout:       flow,
			Auth:           sessions,
			Log:            log,
			RequestTimeout: 5 * time.Second,
		}),
		repo:  repo,
		carts: carts,
	}
}

func (a *testApp) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(method, path, reader)
	a.handler.ServeHTTP(recorder, request)
	return recorder
}

func decodeBody[T any](t *testing.T, recorder *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&v))
	return v
}

func TestHealth(t *testing.T) {
	app := setupApp(t)

	recorder := app.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.NotEmpty(t, recorder.Header().Get(requestIDHeader))
}

func TestRequestID_KeepsCallerValue(t *testing.T) {
	app := setupApp(t)

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/health", nil)
	request.Header.Set(requestIDHeader, "req-42")
	app.handler.ServeHTTP(recorder, request)

	assert.Equal(t, "req-42", recorder.Header().Get(requestIDHeader))
}

func TestListProducts(t *testing.T) {
	app := setupApp(t)

	t.Run("all", func(t *testing.T) {
		recorder := app.do(t, http.MethodGet, "/api/v1/products", nil)
		require.Equal(t, http.StatusOK, recorder.Code)

		resp := decodeBody[ProductsResponse](t, recorder)
		assert.Len(t, resp.Products, 11)
		assert.Equal(t, "Espresso Traditionnel", resp.Products[0].Name)
	})

	t.Run("category and search", func(t *testing.T) {
		recorder := app.do(t, http.MethodGet, "/api/v1/products?category=P%C3%A2tisserie&q=CHOCOLAT", nil)
		require.Equal(t, http.StatusOK, recorder.Code)

		resp := decodeBody[ProductsResponse](t, recorder)
		require.Len(t, resp.Products, 2)
		for _, p := range resp.Products {
			assert.Equal(t, "Pâtisserie", p.Category)
			assert.Contains(t, strings.ToLower(p.Name+p.Description), "chocolat")
		}
	})

	t.Run("all chip", func(t *testing.T) {
		recorder := app.do(t, http.MethodGet, "/api/v1/products?category=Tout", nil)
		resp := decodeBody[ProductsResponse](t, recorder)
		assert.Len(t, resp.Products, 11)
	})
}

func TestGetProduct(t *testing.T) {
	app := setupApp(t)

	recorder := app.do(t, http.MethodGet, "/api/v1/products/9", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	p := decodeBody[ProductResponse](t, recorder)
	assert.Equal(t, "Ghriba", p.Name)
	assert.Equal(t, "ghriba", p.ImageURL)

	assert.Equal(t, http.StatusNotFound, app.do(t, http.MethodGet, "/api/v1/products/999", nil).Code)
	assert.Equal(t, http.StatusBadRequest, app.do(t, http.MethodGet, "/api/v1/products/abc", nil).Code)
}

func TestGetProduct_UnknownImageFallsBack(t *testing.T) {
	app := setupApp(t)

	id, err := app.repo.UpsertProduct(context.Background(), domain.Product{
		Name: "Sellou", Price: decimal.NewFromInt(18), ImageURL: "sellou", Category: "Pâtisserie", InStock: true,
	})
	require.NoError(t, err)

	recorder := app.do(t, http.MethodGet, "/api/v1/products/"+strconv.FormatInt(id, 10), nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, catalog.FallbackImage, decodeBody[ProductResponse](t, recorder).ImageURL)
}

func TestCategories(t *testing.T) {
	app := setupApp(t)

	recorder := app.do(t, http.MethodGet, "/api/v1/categories", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, []string{"Tout", "Café", "Thé", "Pâtisserie"}, decodeBody[CategoriesResponse](t, recorder).Categories)
}

func TestCartFlow(t *testing.T) {
	app := setupApp(t)

	recorder := app.do(t, http.MethodGet, "/api/v1/cart", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	empty := decodeBody[CartResponse](t, recorder)
	assert.Empty(t, empty.Items)
	assert.True(t, empty.Total.IsZero())

	recorder = app.do(t, http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ProductID: 1, Quantity: 2})
	require.Equal(t, http.StatusCreated, recorder.Code)
	recorder = app.do(t, http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ProductID: 1, Quantity: 3})
	require.Equal(t, http.StatusCreated, recorder.Code)

	cart := decodeBody[CartResponse](t, recorder)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 5, cart.Items[0].Quantity)
	assert.True(t, decimal.NewFromInt(75).Equal(cart.Total))
	assert.True(t, decimal.NewFromInt(75).Equal(cart.Items[0].Subtotal))

	recorder = app.do(t, http.MethodPut, "/api/v1/cart/items/1", UpdateQuantityRequestDTO{Quantity: 1})
	require.Equal(t, http.StatusOK, recorder.Code)
	cart = decodeBody[CartResponse](t, recorder)
	assert.Equal(t, 1, cart.Items[0].Quantity)

	recorder = app.do(t, http.MethodPut, "/api/v1/cart/items/1", UpdateQuantityRequestDTO{Quantity: 0})
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Empty(t, decodeBody[CartResponse](t, recorder).Items)
}

func TestCartValidation(t *testing.T) {
	app := setupApp(t)

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"zero quantity", http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ProductID: 1, Quantity: 0}, http.StatusBadRequest},
		{"too many", http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ProductID: 1, Quantity: 100}, http.StatusBadRequest},
		{"bad product id", http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ProductID: 0, Quantity: 1}, http.StatusBadRequest},
		{"unknown product", http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ProductID: 999, Quantity: 1}, http.StatusNotFound},
		{"update missing line", http.MethodPut, "/api/v1/cart/items/2", UpdateQuantityRequestDTO{Quantity: 1}, http.StatusNotFound},
		{"negative update", http.MethodPut, "/api/v1/cart/items/2", UpdateQuantityRequestDTO{Quantity: -1}, http.StatusBadRequest},
		{"remove missing line", http.MethodDelete, "/api/v1/cart/items/2", nil, http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			recorder := app.do(t, tc.method, tc.path, tc.body)
			assert.Equal(t, tc.status, recorder.Code, recorder.Body.String())
		})
	}
}

func TestCart_InvalidJSON(t *testing.T) {
	app := setupApp(t)

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader("{"))
	app.handler.ServeHTTP(recorder, request)

	require.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, "invalid_request", decodeBody[ErrorResponse](t, recorder).Code)
}

func TestRemoveAndClear(t *testing.T) {
	app := setupApp(t)

	app.do(t, http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ProductID: 1, Quantity: 1})
	app.do(t, http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ProductID: 5, Quantity: 1})

	recorder := app.do(t, http.MethodDelete, "/api/v1/cart/items/1", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	cart := decodeBody[CartResponse](t, recorder)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, int64(5), cart.Items[0].ProductID)

	recorder = app.do(t, http.MethodDelete, "/api/v1/cart", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Empty(t, decodeBody[CartResponse](t, recorder).Items)
}

func TestCheckoutFlow(t *testing.T) {
	app := setupApp(t)

	recorder := app.do(t, http.MethodPost, "/api/v1/checkout", nil)
	require.Equal(t, http.StatusConflict, recorder.Code)
	assert.Equal(t, "empty_cart", decodeBody[ErrorResponse](t, recorder).Code)

	app.do(t, http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ProductID: 1, Quantity: 2}) // 15 x 2
	app.do(t, http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ProductID: 3, Quantity: 1}) // 25 x 1

	recorder = app.do(t, http.MethodPost, "/api/v1/checkout", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	state := decodeBody[checkout.State](t, recorder)
	assert.Equal(t, checkout.StatusConfirming, state.Status)
	require.NotNil(t, state.Review)
	assert.True(t, decimal.NewFromInt(55).Equal(state.Review.TotalAmount))
	assert.Equal(t, 2, state.Review.ItemCount)

	recorder = app.do(t, http.MethodPost, "/api/v1/checkout/confirm", nil)
	require.Equal(t, http.StatusCreated, recorder.Code)
	confirmation := decodeBody[domain.OrderConfirmation](t, recorder)
	assert.True(t, decimal.NewFromInt(55).Equal(confirmation.TotalAmount))
	assert.Equal(t, 2, confirmation.ItemCount)

	recorder = app.do(t, http.MethodGet, "/api/v1/cart", nil)
	assert.Empty(t, decodeBody[CartResponse](t, recorder).Items)

	recorder = app.do(t, http.MethodPost, "/api/v1/checkout/confirm", nil)
	require.Equal(t, http.StatusConflict, recorder.Code)
	assert.Equal(t, "illegal_transition", decodeBody[ErrorResponse](t, recorder).Code)

	recorder = app.do(t, http.MethodPost, "/api/v1/checkout/continue", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, checkout.StatusCart, decodeBody[checkout.State](t, recorder).Status)
}

func TestCheckoutCancel(t *testing.T) {
	app := setupApp(t)

	app.do(t, http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ProductID: 2, Quantity: 1})
	require.Equal(t, http.StatusOK, app.do(t, http.MethodPost, "/api/v1/checkout", nil).Code)

	recorder := app.do(t, http.MethodPost, "/api/v1/checkout/cancel", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, checkout.StatusCart, decodeBody[checkout.State](t, recorder).Status)

	recorder = app.do(t, http.MethodGet, "/api/v1/cart", nil)
	assert.Len(t, decodeBody[CartResponse](t, recorder).Items, 1)
}

func TestAuth(t *testing.T) {
	app := setupApp(t)

	recorder := app.do(t, http.MethodPost, "/api/v1/auth/login", LoginRequestDTO{Email: "a@b.com", Password: "x"})
	require.Equal(t, http.StatusOK, recorder.Code)
	st := decodeBody[auth.State](t, recorder)
	assert.Equal(t, auth.PhaseSuccess, st.Phase)
	require.NotNil(t, st.Session)
	assert.Equal(t, "a", st.Session.Name)

	recorder = app.do(t, http.MethodGet, "/api/v1/auth/session", nil)
	assert.Equal(t, auth.PhaseSuccess, decodeBody[auth.State](t, recorder).Phase)

	recorder = app.do(t, http.MethodPost, "/api/v1/auth/logout", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, auth.State{Phase: auth.PhaseIdle}, decodeBody[auth.State](t, recorder))

	recorder = app.do(t, http.MethodPost, "/api/v1/auth/login", LoginRequestDTO{})
	require.Equal(t, http.StatusUnauthorized, recorder.Code)
	st = decodeBody[auth.State](t, recorder)
	assert.Equal(t, auth.PhaseError, st.Phase)
	assert.Equal(t, auth.MsgInvalidLogin, st.Message)
}

func TestSignup(t *testing.T) {
	app := setupApp(t)

	recorder := app.do(t, http.MethodPost, "/api/v1/auth/signup", SignupRequestDTO{
		Name: "Sara", Email: "sara@qahwa.ma", Password: "123456", ConfirmPassword: "654321",
	})
	require.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, "invalid_argument", decodeBody[ErrorResponse](t, recorder).Code)

	recorder = app.do(t, http.MethodPost, "/api/v1/auth/signup", SignupRequestDTO{
		Name: "Sara", Email: "sara@qahwa.ma", Password: "123456", ConfirmPassword: "123456",
	})
	require.Equal(t, http.StatusOK, recorder.Code)
	st := decodeBody[auth.State](t, recorder)
	assert.Equal(t, auth.PhaseSuccess, st.Phase)
	assert.Equal(t, "Sara", st.Session.Name)
}

func TestStorageUnavailable(t *testing.T) {
	app := setupApp(t)
	require.NoError(t, app.repo.Close())

	recorder := app.do(t, http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ProductID: 1, Quantity: 1})
	require.Equal(t, http.StatusServiceUnavailable, recorder.Code)
	assert.Equal(t, "storage_unavailable", decodeBody[ErrorResponse](t, recorder).Code)
}

type eventStream struct {
	reader *bufio.Reader
}

// openStream connects to an event stream on srv and checks the response headers.
func openStream(t *testing.T, ctx context.Context, srv *httptest.Server, path string) *eventStream {
	t.Helper()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+path, nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	return &eventStream{reader: bufio.NewReader(resp.Body)}
}

// nextEvent reads until the next event and decodes its data into T.
func nextEvent[T any](t *testing.T, s *eventStream, name string) T {
	t.Helper()
	for {
		line, err := s.reader.ReadString('\n')
		require.NoError(t, err)
		if event, ok := strings.CutPrefix(line, "event: "); ok {
			assert.Equal(t, name, strings.TrimSpace(event))
			continue
		}
		if data, ok := strings.CutPrefix(line, "data: "); ok {
			var v T
			require.NoError(t, json.Unmarshal([]byte(data), &v))
			return v
		}
	}
}

func TestCartEvents(t *testing.T) {
	app := setupApp(t)
	srv := httptest.NewServer(app.handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream := openStream(t, ctx, srv, "/api/v1/cart/events")

	initial := nextEvent[CartResponse](t, stream, "cart")
	assert.Empty(t, initial.Items)

	_, err := app.carts.AddToCart(ctx, domain.Product{ID: 1, Name: "Espresso Traditionnel", Price: decimal.NewFromInt(15)}, 2)
	require.NoError(t, err)

	updated := nextEvent[CartResponse](t, stream, "cart")
	require.Len(t, updated.Items, 1)
	assert.True(t, decimal.NewFromInt(30).Equal(updated.Total))
}

func TestCheckoutEvents(t *testing.T) {
	app := setupApp(t)
	srv := httptest.NewServer(app.handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream := openStream(t, ctx, srv, "/api/v1/checkout/events")
	assert.Equal(t, checkout.StatusCart, nextEvent[checkout.State](t, stream, "checkout").Status)

	app.do(t, http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ProductID: 1, Quantity: 1})
	require.Equal(t, http.StatusOK, app.do(t, http.MethodPost, "/api/v1/checkout", nil).Code)

	st := nextEvent[checkout.State](t, stream, "checkout")
	assert.Equal(t, checkout.StatusConfirming, st.Status)
	require.NotNil(t, st.Review)
	assert.True(t, decimal.NewFromInt(15).Equal(st.Review.TotalAmount))
}

func TestAuthEvents(t *testing.T) {
	app := setupApp(t)
	srv := httptest.NewServer(app.handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream := openStream(t, ctx, srv, "/api/v1/auth/events")
	assert.Equal(t, auth.PhaseIdle, nextEvent[auth.State](t, stream, "auth").Phase)

	require.Equal(t, http.StatusOK, app.do(t, http.MethodPost, "/api/v1/auth/login", LoginRequestDTO{Email: "a@b.com", Password: "x"}).Code)

	// Loading may be overwritten by Success before the stream reads it
	for {
		st := nextEvent[auth.State](t, stream, "auth")
		if st.Phase == auth.PhaseLoading {
			continue
		}
		assert.Equal(t, auth.PhaseSuccess, st.Phase)
		require.NotNil(t, st.Session)
		assert.Equal(t, "a@b.com", st.Session.Email)
		break
	}
}

func TestProductEvents(t *testing.T) {
	app := setupApp(t)
	srv := httptest.NewServer(app.handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream := openStream(t, ctx, srv, "/api/v1/products/events")
	initial := nextEvent[CatalogViewResponse](t, stream, "products")
	assert.Empty(t, initial.Category)
	assert.NotEmpty(t, initial.Products)

	require.Equal(t, http.StatusOK, app.do(t, http.MethodGet, "/api/v1/products?q=ghriba", nil).Code)

	filtered := nextEvent[CatalogViewResponse](t, stream, "products")
	assert.Equal(t, "ghriba", filtered.Search)
	require.Len(t, filtered.Products, 1)
	assert.Equal(t, "Ghriba", filtered.Products[0].Name)
}

func TestUpdateQuantity_KeepsSnapshot(t *testing.T) {
	app := setupApp(t)

	app.do(t, http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ProductID: 1, Quantity: 1})
	before := decodeBody[CartResponse](t, app.do(t, http.MethodGet, "/api/v1/cart", nil))
	require.Len(t, before.Items, 1)

	recorder := app.do(t, http.MethodPut, "/api/v1/cart/items/1", UpdateQuantityRequestDTO{Quantity: 4})
	require.Equal(t, http.StatusOK, recorder.Code)
	after := decodeBody[CartResponse](t, recorder)
	require.Len(t, after.Items, 1)
	assert.Equal(t, before.Items[0].ID, after.Items[0].ID)
	assert.Equal(t, before.Items[0].ProductName, after.Items[0].ProductName)
	assert.Equal(t, before.Items[0].ImageURL, after.Items[0].ImageURL)
	assert.Equal(t, 4, after.Items[0].Quantity)
}
