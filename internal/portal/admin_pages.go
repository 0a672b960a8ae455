package portal

import (
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/payment-portal/internal/apiclient"
	"github.com/frahmantamala/payment-portal/internal/guard"
	"github.com/frahmantamala/payment-portal/internal/report"
	"github.com/frahmantamala/payment-portal/internal/request"
	"github.com/frahmantamala/payment-portal/internal/user"
)

type approvalsData struct {
	Requests []request.PaymentRequest
}

type countRow struct {
	Label string
	Count int64
}

type analyticsData struct {
	Analytics *report.Analytics
	Types     []countRow
	Months    []countRow
	// CanDownload offers the summary report link.
	CanDownload bool
}

type usersData struct {
	Users []user.User
	Roles []user.Role
}

type settingsData struct {
	Profile map[string]string
	IsAdmin bool
}

// settingsSections maps a settings form to the API resource it updates.
// Admin-only sections are flagged.
var settingsSections = map[string]struct {
	path      string
	adminOnly bool
}{
	"profile":     {path: "/api/user/profile"},
	"security":    {path: "/api/user/security"},
	"preferences": {path: "/api/user/preferences"},
	"company":     {path: "/api/admin/company", adminOnly: true},
	"system":      {path: "/api/admin/system", adminOnly: true},
}

func (s *Server) approvals(w http.ResponseWriter, r *http.Request) {
	v := visitorFrom(r.Context())
	p := s.newPage(r, "Approvals")

	requests, err := v.api.ListRequests(r.Context(), apiclient.ListParams{Status: request.StatusPending})
	if err != nil {
		if s.expired(w, r, err) {
			return
		}
		p.Error = apiclient.Message(err, "Failed to fetch pending requests")
	}
	pending := pendingFor(v.auth.CurrentUser(), requests)
	sortNewestFirst(pending)

	p.Data = approvalsData{Requests: pending}
	s.render(w, r, http.StatusOK, "approvals", p)
}

func (s *Server) analytics(w http.ResponseWriter, r *http.Request) {
	v := visitorFrom(r.Context())
	p := s.newPage(r, "Analytics")

	data := analyticsData{CanDownload: canDownloadSummary(p.User)}
	a, err := v.api.Analytics(r.Context())
	if err != nil {
		if s.expired(w, r, err) {
			return
		}
		p.Error = apiclient.Message(err, "Failed to load analytics data")
	} else {
		data.Analytics = a
		data.Types = byCount(a.RequestTypes)
		data.Months = byMonth(a.MonthlyTrends)
	}

	p.Data = data
	s.render(w, r, http.StatusOK, "analytics", p)
}

func canDownloadSummary(u *user.User) bool {
	roles, _ := guard.RolesFor("/analytics/summary")
	return u != nil && u.Role.In(roles...)
}

func (s *Server) summaryReport(w http.ResponseWriter, r *http.Request) {
	v := visitorFrom(r.Context())

	doc, err := v.api.Summary(r.Context())
	if err != nil {
		if s.expired(w, r, err) {
			return
		}
		p := s.newPage(r, "Analytics")
		p.Data = analyticsData{CanDownload: canDownloadSummary(p.User)}
		p.Error = apiclient.Message(err, "Failed to generate report")
		s.render(w, r, http.StatusOK, "analytics", p)
		return
	}
	filename := doc.FileName
	if filename == "" {
		filename = "payment_summary_" + s.now().Format("2006-01-02") + ".pdf"
	}
	s.download(w, doc, filename)
}

func byCount(m map[string]int64) []countRow {
	rows := make([]countRow, 0, len(m))
	for k, n := range m {
		rows = append(rows, countRow{Label: k, Count: n})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		return rows[i].Label < rows[j].Label
	})
	return rows
}

// byMonth orders "January 2006" keys chronologically; unparseable keys sort last.
func byMonth(m map[string]int64) []countRow {
	rows := make([]countRow, 0, len(m))
	for k, n := range m {
		rows = append(rows, countRow{Label: k, Count: n})
	}
	sort.Slice(rows, func(i, j int) bool {
		ti, errI := time.Parse("January 2006", rows[i].Label)
		tj, errJ := time.Parse("January 2006", rows[j].Label)
		switch {
		case errI != nil && errJ != nil:
			return rows[i].Label < rows[j].Label
		case errI != nil:
			return false
		case errJ != nil:
			return true
		default:
			return ti.Before(tj)
		}
	})
	return rows
}

func (s *Server) adminUsers(w http.ResponseWriter, r *http.Request) {
	s.renderUsers(w, r, http.StatusOK, "", "")
}

func (s *Server) renderUsers(w http.ResponseWriter, r *http.Request, status int, banner, notice string) {
	v := visitorFrom(r.Context())
	p := s.newPage(r, "Users")
	p.Path = "/admin/users"
	p.Error = banner
	p.Notice = notice

	var users []user.User
	if err := v.api.GetJSON(r.Context(), "/api/admin/users", &users); err != nil {
		if s.expired(w, r, err) {
			return
		}
		p.Error = apiclient.Message(err, "Failed to load users")
	}
	sort.Slice(users, func(i, j int) bool { return users[i].FullName < users[j].FullName })

	p.Data = usersData{Users: users, Roles: user.Roles()}
	s.render(w, r, status, "admin_users", p)
}

// updateUser forwards the admin edit as-is; the API validates it.
func (s *Server) updateUser(w http.ResponseWriter, r *http.Request) {
	v := visitorFrom(r.Context())
	id := chi.URLParam(r, "id")
	if err := r.ParseForm(); err != nil {
		s.renderUsers(w, r, http.StatusBadRequest, "Failed to read the form", "")
		return
	}

	body := map[string]interface{}{
		"is_active": r.PostForm.Get("is_active") == "true",
	}
	if role := r.PostForm.Get("role"); role != "" {
		body["role"] = role
	}
	if _, ok := r.PostForm["department"]; ok {
		body["department"] = strings.TrimSpace(r.PostForm.Get("department"))
	}

	if err := v.api.PutJSON(r.Context(), "/api/admin/users/"+url.PathEscape(id), body, nil); err != nil {
		if s.expired(w, r, err) {
			return
		}
		s.renderUsers(w, r, http.StatusOK, apiclient.Message(err, "Failed to update user"), "")
		return
	}
	s.renderUsers(w, r, http.StatusOK, "", "User updated")
}

func (s *Server) settings(w http.ResponseWriter, r *http.Request) {
	s.renderSettings(w, r, http.StatusOK, "", "")
}

func (s *Server) renderSettings(w http.ResponseWriter, r *http.Request, status int, banner, notice string) {
	v := visitorFrom(r.Context())
	actor := v.auth.CurrentUser()
	p := s.newPage(r, "Settings")
	p.Path = "/settings"
	p.Error = banner
	p.Notice = notice

	profile := map[string]interface{}{}
	if err := v.api.GetJSON(r.Context(), "/api/user/profile", &profile); err != nil {
		if s.expired(w, r, err) {
			return
		}
		if p.Error == "" {
			p.Error = apiclient.Message(err, "Failed to load settings")
		}
	}

	p.Data = settingsData{Profile: stringFields(profile), IsAdmin: actor.Role == user.RoleAdmin}
	s.render(w, r, status, "settings", p)
}

// saveSettings passes a settings form through to the API untouched.
func (s *Server) saveSettings(w http.ResponseWriter, r *http.Request) {
	v := visitorFrom(r.Context())
	actor := v.auth.CurrentUser()

	section, ok := settingsSections[chi.URLParam(r, "section")]
	if !ok {
		http.NotFound(w, r)
		return
	}
	if section.adminOnly && actor.Role != user.RoleAdmin {
		http.Redirect(w, r, "/unauthorized", http.StatusSeeOther)
		return
	}
	if err := r.ParseForm(); err != nil {
		s.renderSettings(w, r, http.StatusBadRequest, "Failed to read the form", "")
		return
	}

	body := make(map[string]string, len(r.PostForm))
	for k := range r.PostForm {
		body[k] = r.PostForm.Get(k)
	}
	if err := v.api.PutJSON(r.Context(), section.path, body, nil); err != nil {
		if s.expired(w, r, err) {
			return
		}
		s.renderSettings(w, r, http.StatusOK, apiclient.Message(err, "Failed to update settings. Please try again."), "")
		return
	}
	s.renderSettings(w, r, http.StatusOK, "", "Settings saved")
}

func stringFields(m map[string]interface{}) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}
