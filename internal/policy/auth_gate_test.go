package policy

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/sallegelias/metaverso-erp/auth"
	"github.com/sallegelias/metaverso-erp/gate"
	"github.com/sallegelias/metaverso-erp/internal/db"
	"github.com/sallegelias/metaverso-erp/internal/models"
)

func setupGate(t *testing.T) (*AuthGate, *gorm.DB) {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	if err != nil {
		t.Fatal(err)
	}
	if err := db.Migrate(conn, nil); err != nil {
		t.Fatal(err)
	}
	if err := db.Seed(conn); err != nil {
		t.Fatal(err)
	}
	return NewAuthGate(conn, time.Minute, nil, nil), conn
}

func userID(t *testing.T, conn *gorm.DB, username string) uint {
	t.Helper()
	var u models.User
	if err := conn.Where("username = ?", username).First(&u).Error; err != nil {
		t.Fatal(err)
	}
	return u.ID
}

func TestRolePermissions(t *testing.T) {
	g, conn := setupGate(t)
	admin := auth.WithUserID(context.Background(), userID(t, conn, "admin"))
	secre := auth.WithUserID(context.Background(), userID(t, conn, "secre"))
	anon := context.Background()

	cases := []struct {
		name     string
		ctx      context.Context
		resource string
		action   gate.Action
		want     bool
	}{
		{"admin deletes quotations", admin, ResourceQuotation, gate.ActionDelete, true},
		{"admin resets numbering", admin, ResourceQuotation, gate.ActionReset, true},
		{"admin edits settings", admin, ResourceSettings, gate.ActionSave, true},
		{"assistant saves clients", secre, ResourceClient, gate.ActionSave, true},
		{"assistant sends quotations", secre, ResourceQuotation, gate.ActionSend, true},
		{"assistant views dashboard", secre, ResourceDashboard, gate.ActionView, true},
		{"assistant cannot delete clients", secre, ResourceClient, gate.ActionDelete, false},
		{"assistant cannot reset", secre, ResourceQuotation, gate.ActionReset, false},
		{"assistant cannot see reports", secre, ResourceReport, gate.ActionView, false},
		{"anonymous cannot list", anon, ResourceQuotation, gate.ActionList, false},
	}
	for _, tc := range cases {
		if got := g.Can(tc.ctx, tc.action, tc.resource); got != tc.want {
			t.Errorf("%s: Can() = %v, want %v", tc.name, got, tc.want)
		}
	}

	if g.Role(admin) != auth.RoleAdmin || g.Role(secre) != auth.RoleAssistant || g.Role(anon) != auth.RoleAnonymous {
		t.Fatalf("roles = %s %s %s", g.Role(admin), g.Role(secre), g.Role(anon))
	}
	if !g.IsAdmin(admin) || g.IsAdmin(secre) {
		t.Fatal("IsAdmin mismatch")
	}
}

func TestUnknownUserAndRole(t *testing.T) {
	g, conn := setupGate(t)

	ghost := auth.WithUserID(context.Background(), 9999)
	if g.Role(ghost) != auth.RoleAnonymous || g.Can(ghost, gate.ActionList, ResourceClient) {
		t.Fatal("unknown user should have no permissions")
	}

	odd := models.User{Username: "odd", Password: "x", Role: "auditor"}
	if err := conn.Create(&odd).Error; err != nil {
		t.Fatal(err)
	}
	if g.Can(auth.WithUserID(context.Background(), odd.ID), gate.ActionList, ResourceClient) {
		t.Fatal("role outside the table should have no permissions")
	}
}

func TestInvalidateUserPicksUpRoleChange(t *testing.T) {
	g, conn := setupGate(t)
	id := userID(t, conn, "secre")
	ctx := auth.WithUserID(context.Background(), id)

	if g.IsAdmin(ctx) {
		t.Fatal("secre starts as assistant")
	}
	conn.Model(&models.User{}).Where("id = ?", id).Update("role", auth.RoleAdmin)
	if g.IsAdmin(ctx) {
		t.Fatal("cached role should still apply")
	}
	g.InvalidateUser(id)
	if !g.IsAdmin(ctx) {
		t.Fatal("role change not picked up after invalidation")
	}
}

func TestMiddleware(t *testing.T) {
	g, conn := setupGate(t)
	secreID := userID(t, conn, "secre")

	var seenRole string
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenRole = auth.RoleFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	serve := func(h http.Handler, uid uint, accept string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/x", nil)
		if uid != 0 {
			req = req.WithContext(auth.WithUserID(req.Context(), uid))
		}
		if accept != "" {
			req.Header.Set("Accept", accept)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	if rec := serve(g.AttachRole(ok), secreID, ""); rec.Code != http.StatusNoContent || seenRole != auth.RoleAssistant {
		t.Fatalf("AttachRole: code %d role %q", rec.Code, seenRole)
	}

	send := g.RequirePermission(ResourceQuotation, gate.ActionSend)(ok)
	if rec := serve(send, secreID, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("assistant send = %d", rec.Code)
	}

	admin := g.RequireAdmin()(ok)
	if rec := serve(admin, secreID, ""); rec.Code != http.StatusForbidden {
		t.Fatalf("assistant on admin route = %d", rec.Code)
	}
	rec := serve(admin, secreID, "application/json")
	if rec.Code != http.StatusForbidden || rec.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("JSON forbidden = %d %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	if rec := serve(admin, 0, ""); rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/login" {
		t.Fatalf("anonymous on admin route = %d %q", rec.Code, rec.Header().Get("Location"))
	}
	if rec := serve(admin, userID(t, conn, "admin"), ""); rec.Code != http.StatusNoContent {
		t.Fatalf("admin on admin route = %d", rec.Code)
	}
}
