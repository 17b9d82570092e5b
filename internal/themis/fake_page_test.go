package themis

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"go.uber.org/zap/zaptest"

	"github.com/AdeilsonR/puppeteer-themis/internal/browser"
	"github.com/AdeilsonR/puppeteer-themis/internal/config"
)

// fakePage is an in-memory Page. Selectors listed in visible resolve
// immediately; anything else blocks until the caller's context expires.
type fakePage struct {
	mu sync.Mutex

	id       string
	visible  map[string]bool
	location string
	body     string
	html     map[string]string
	counts   map[string]int
	values   map[string]string
	options  map[string][]string
	actions  []string
	closed   bool
	reloads  int
	navigate func(p *fakePage, url string)
	onReload func(p *fakePage)
	onKey    func(p *fakePage, key string)
	clicks   map[string]func(p *fakePage)
}

func newFakePage() *fakePage {
	return &fakePage{
		id:      uuid.NewString(),
		visible: map[string]bool{},
		html:    map[string]string{},
		counts:  map[string]int{},
		values:  map[string]string{},
		options: map[string][]string{},
		clicks:  map[string]func(p *fakePage){},
	}
}

func (p *fakePage) record(format string, args ...interface{}) {
	p.actions = append(p.actions, fmt.Sprintf(format, args...))
}

func (p *fakePage) show(selectors ...string) {
	for _, s := range selectors {
		p.visible[s] = true
	}
}

func (p *fakePage) hide(selectors ...string) {
	for _, s := range selectors {
		delete(p.visible, s)
	}
}

func (p *fakePage) actionLog() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.actions...)
}

func (p *fakePage) Navigate(_ context.Context, url string) error {
	p.mu.Lock()
	p.location = url
	p.record("navigate %s", url)
	hook := p.navigate
	p.mu.Unlock()
	if hook != nil {
		hook(p, url)
	}
	return nil
}

func (p *fakePage) Reload(context.Context) error {
	p.mu.Lock()
	p.reloads++
	p.record("reload")
	hook := p.onReload
	p.mu.Unlock()
	if hook != nil {
		hook(p)
	}
	return nil
}

func (p *fakePage) WaitVisible(ctx context.Context, selector string) error {
	p.mu.Lock()
	ok := p.visible[selector]
	p.mu.Unlock()
	if ok {
		return nil
	}
	<-ctx.Done()
	return fmt.Errorf("wait for %q: %w", selector, ctx.Err())
}

func (p *fakePage) Click(_ context.Context, selector string) error {
	p.mu.Lock()
	p.record("click %s", selector)
	hook := p.clicks[selector]
	p.mu.Unlock()
	if hook != nil {
		hook(p)
	}
	return nil
}

// ClickInRow resolves row against the table markup the page currently renders
// and records the first cell of the row whose control was clicked.
func (p *fakePage) ClickInRow(_ context.Context, row browser.RowRef, selector string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.visible[selector] {
		return false, nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(p.html[row.Table]))
	if err != nil {
		return false, err
	}
	tr := doc.Find(row.Table).First().Find(row.Rows).Eq(row.Index)
	if tr.Find(selector).Length() == 0 {
		return false, nil
	}
	p.record("%s", rowClick(selector, strings.TrimSpace(tr.Find("td").First().Text())))
	return true, nil
}

// rowClick is the action ClickInRow records.
func rowClick(selector, firstCell string) string {
	return fmt.Sprintf("click %s in row %q", selector, firstCell)
}

func (p *fakePage) Clear(_ context.Context, selector string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values[selector] = ""
	p.record("clear %s", selector)
	return nil
}

func (p *fakePage) Type(_ context.Context, selector, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values[selector] += text
	p.record("type %s %s", selector, text)
	return nil
}

func (p *fakePage) PressKey(_ context.Context, key string) error {
	p.mu.Lock()
	p.record("key %s", key)
	hook := p.onKey
	p.mu.Unlock()
	if hook != nil {
		hook(p, key)
	}
	return nil
}

func (p *fakePage) SetValue(_ context.Context, selector, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values[selector] = value
	p.record("set %s %s", selector, value)
	return nil
}

func (p *fakePage) SelectOption(_ context.Context, selector, label string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, opt := range p.options[selector] {
		if strings.EqualFold(strings.TrimSpace(opt), strings.TrimSpace(label)) {
			p.values[selector] = opt
			p.record("select %s %s", selector, opt)
			return true, nil
		}
	}
	return false, nil
}

func (p *fakePage) DispatchChange(_ context.Context, selector string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("change %s", selector)
	return nil
}

func (p *fakePage) Location(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.location, nil
}

func (p *fakePage) BodyText(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.body, nil
}

func (p *fakePage) OuterHTML(_ context.Context, selector string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.html[selector], nil
}

func (p *fakePage) CountNodes(_ context.Context, selector string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counts[selector], nil
}

func (p *fakePage) Screenshot(context.Context) ([]byte, error) {
	return []byte("jpeg-bytes"), nil
}

func (p *fakePage) ID() string { return p.id }

func (p *fakePage) Close(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePage) hasAction(prefix string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, a := range p.actions {
		if strings.HasPrefix(a, prefix) {
			return true
		}
	}
	return false
}

func (p *fakePage) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// -- Fixtures --

const testCaseID = "0001234-56.2023.8.26.0100"

// testConfig returns the default configuration with timings shrunk for tests.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewDefaultConfig()
	cfg.Portal.BaseURL = "https://themis.test/themis"
	cfg.Portal.Username = "operador"
	cfg.Portal.Password = "segredo"
	cfg.Typing.Enabled = false
	cfg.Workflow.SelectorTimeout = 20 * time.Millisecond
	cfg.Workflow.LoginTimeout = 100 * time.Millisecond
	cfg.Workflow.RowsTimeout = 50 * time.Millisecond
	cfg.Workflow.PollInterval = 5 * time.Millisecond
	cfg.Workflow.AutocompleteSettle = 0
	cfg.Workflow.FormSettle = 0
	cfg.Workflow.SaveSettle = 0
	cfg.Workflow.RequestTimeout = 5 * time.Second
	cfg.RateLimit.Enabled = false
	cfg.Diagnostics.Dir = t.TempDir()
	return cfg
}

// resultTable renders the case list the way the portal does.
func resultTable(rows ...[]string) string {
	var b strings.Builder
	b.WriteString(`<table class="tabela-processos"><thead><tr><th>Número</th><th>Tipo</th><th>Atualização</th><th>Status</th></tr></thead><tbody>`)
	for _, row := range rows {
		b.WriteString("<tr>")
		for _, cell := range row {
			fmt.Fprintf(&b, "<td>%s</td>", cell)
		}
		b.WriteString(`<td><button class="cadastrar">Cadastrar</button></td></tr>`)
	}
	b.WriteString("</tbody></table>")
	return b.String()
}

// interleavedTable renders case rows separated by detail rows, the way the
// portal expands a case in place. Only case rows carry class "linha".
func interleavedTable() string {
	button := `<td><button class="cadastrar">Cadastrar</button></td>`
	return `<table class="tabela-processos">` +
		`<thead><tr><th>Número</th><th>Tipo</th><th>Atualização</th><th>Status</th><th></th></tr></thead><tbody>` +
		`<tr class="linha"><td>A-111</td><td>Cível</td><td>01/01/2024</td><td>Arquivado</td>` + button + `</tr>` +
		`<tr class="detalhe"><td colspan="5">Partes: Fulano x Beltrano</td></tr>` +
		`<tr class="linha"><td>B-222</td><td>Cível</td><td>02/01/2024</td><td>Aguardando cadastro</td>` + button + `</tr>` +
		`<tr class="linha"><td>C-333</td><td>Trabalhista</td><td>03/01/2024</td><td>Aguardando cadastro</td>` + button + `</tr>` +
		`</tbody></table>`
}

// portalPage wires a fake page that behaves like a healthy portal: the login
// form redirects on submit and the case list renders table for any search.
func portalPage(t *testing.T, cfg *config.Config, table string) *fakePage {
	t.Helper()
	sel := cfg.Portal.Selectors
	p := newFakePage()
	p.show(sel.Username[0], sel.Password[0], sel.Submit[0])
	p.show(sel.SearchSurface[0], sel.AddFilter[0], sel.FilterInput[0], sel.SearchButton[0])

	p.clicks[sel.Submit[0]] = func(p *fakePage) {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.location = cfg.Portal.URL("dashboard")
	}
	p.clicks[sel.SearchButton[0]] = func(p *fakePage) {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.html[sel.ResultTable] = table
		p.counts[sel.ResultRows] = strings.Count(table, "<tr>") - 1
	}
	return p
}

// readyForm makes every registration control visible, with select options
// matching the default configuration.
func readyForm(p *fakePage, cfg *config.Config) {
	sel := cfg.Portal.Selectors
	p.show(sel.RegisterButton[0])
	p.show(sel.Area[0], sel.Client[0], sel.Attorney[0], sel.Origin[0], sel.Office[0])
	p.show(sel.ClaimValue[0], sel.AccruedValue[0], sel.FutureValue[0])
	p.show(sel.AddInterested[0], sel.InterestedParty[0], sel.AddOpposing[0], sel.OpposingParty[0])
	p.show(sel.CaseType[0], sel.Instance[0], sel.Phase[0], sel.Venue[0], sel.WorkflowStage[0], sel.SaveButton[0])
	p.options[sel.Area[0]] = []string{"Cível", cfg.Registration.Area}
	p.options[sel.Instance[0]] = []string{cfg.Registration.Instance}
	p.options[sel.Phase[0]] = []string{cfg.Registration.Phase}
	p.options[sel.WorkflowStage[0]] = []string{"Novo", cfg.Registration.WorkflowStage}
}

func newTestLocator(t *testing.T, cfg *config.Config) *CaseLocator {
	return NewCaseLocator(cfg.Portal, cfg.Workflow, zaptest.NewLogger(t))
}
