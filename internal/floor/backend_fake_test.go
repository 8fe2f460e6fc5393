package floor_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"floorsync/internal/models"
)

// fakeBackend 仅用于单元测试（内存版远端订单管理后端）
// 按 "METHOD /path" 记录每个端点的命中次数，供定向重载断言使用。
type fakeBackend struct {
	t      *testing.T
	server *httptest.Server

	mu       sync.Mutex
	counts   map[string]int
	layout   *models.Layout // nil 表示远端没有布局（404）
	tables   []models.TableGeometry
	elements []models.DecorativeElement
	orders   []models.Order

	failTables   bool
	failOrders   bool
	failPosition bool

	nextTableID int64
	nextOrderID int64
}

func newFakeBackend(t *testing.T) *fakeBackend {
	b := &fakeBackend{
		t:           t,
		counts:      make(map[string]int),
		nextTableID: 100,
		nextOrderID: 1000,
	}
	b.server = httptest.NewServer(b)
	t.Cleanup(b.server.Close)
	return b
}

func (b *fakeBackend) URL() string { return b.server.URL }

// count 指定端点的命中次数
func (b *fakeBackend) count(method, path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts[method+" "+path]
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.counts[r.Method+" "+r.URL.Path]++

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/test":
		w.WriteHeader(http.StatusOK)

	case r.Method == http.MethodGet && len(parts) == 2 && parts[0] == "layout":
		if b.layout == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "layout not found"})
			return
		}
		writeJSON(w, http.StatusOK, b.layout)

	case r.Method == http.MethodPost && r.URL.Path == "/layout":
		var layout models.Layout
		mustDecode(b.t, r, &layout)
		layout.ID = 1
		b.layout = &layout
		writeJSON(w, http.StatusCreated, layout)

	case r.Method == http.MethodGet && len(parts) == 3 && parts[0] == "layout" && parts[2] == "tables":
		if b.failTables {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "storage down"})
			return
		}
		writeJSON(w, http.StatusOK, b.tables)

	case r.Method == http.MethodGet && len(parts) == 3 && parts[0] == "layout" && parts[2] == "elements":
		writeJSON(w, http.StatusOK, b.elements)

	case r.Method == http.MethodGet && len(parts) == 2 && parts[0] == "proposals":
		if b.failOrders {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "storage down"})
			return
		}
		writeJSON(w, http.StatusOK, b.orders)

	case r.Method == http.MethodPost && r.URL.Path == "/table":
		var table models.TableGeometry
		mustDecode(b.t, r, &table)
		table.ID = b.nextTableID
		b.nextTableID++
		b.tables = append(b.tables, table)
		writeJSON(w, http.StatusCreated, table)

	case r.Method == http.MethodPut && len(parts) == 3 && parts[0] == "table" && parts[2] == "position":
		if b.failPosition {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "storage down"})
			return
		}
		id := mustInt64(b.t, parts[1])
		var pos models.Position
		mustDecode(b.t, r, &pos)
		for i := range b.tables {
			if b.tables[i].ID == id {
				b.tables[i].PosX = pos.X
				b.tables[i].PosY = pos.Y
				w.WriteHeader(http.StatusOK)
				return
			}
		}
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "table not found"})

	case r.Method == http.MethodDelete && len(parts) == 2 && parts[0] == "table":
		id := mustInt64(b.t, parts[1])
		for i := range b.tables {
			if b.tables[i].ID == id {
				b.tables = append(b.tables[:i], b.tables[i+1:]...)
				w.WriteHeader(http.StatusOK)
				return
			}
		}
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "table not found"})

	case r.Method == http.MethodPost && len(parts) == 3 && parts[0] == "table" && parts[2] == "open":
		numero := int(mustInt64(b.t, parts[1]))
		b.orders = append(b.orders, models.Order{
			ID:     b.nextOrderID,
			Numero: numero,
			Statut: 1,
		})
		b.nextOrderID++
		w.WriteHeader(http.StatusCreated)

	case r.Method == http.MethodPost && len(parts) == 3 && parts[0] == "table" && parts[2] == "close":
		ref := mustInt64(b.t, parts[1])
		for i := range b.orders {
			if b.orders[i].ID == ref {
				b.orders = append(b.orders[:i], b.orders[i+1:]...)
				w.WriteHeader(http.StatusOK)
				return
			}
		}
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})

	case r.Method == http.MethodPost && len(parts) == 3 && parts[0] == "table" && parts[2] == "product":
		var item models.OrderItem
		mustDecode(b.t, r, &item)
		w.WriteHeader(http.StatusOK)

	case r.Method == http.MethodPost && r.URL.Path == "/upload-image":
		writeJSON(w, http.StatusOK, map[string]string{"url": "/img/background.png"})

	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no such endpoint"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func mustDecode(t *testing.T, r *http.Request, v any) {
	t.Helper()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode request body: %v", err)
	}
}

func mustInt64(t *testing.T, s string) int64 {
	t.Helper()
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		t.Fatalf("bad id in path: %v", err)
	}
	return v
}
