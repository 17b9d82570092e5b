package themis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/AdeilsonR/puppeteer-themis/internal/browser"
	"github.com/AdeilsonR/puppeteer-themis/internal/config"
	"github.com/AdeilsonR/puppeteer-themis/internal/humanoid"
)

// Registrar fills and submits the registration form of a listed case.
type Registrar struct {
	portal  config.PortalConfig
	flow    config.WorkflowConfig
	reg     config.RegistrationConfig
	locator *CaseLocator
	logger  *zap.Logger
}

func NewRegistrar(portal config.PortalConfig, flow config.WorkflowConfig, reg config.RegistrationConfig, locator *CaseLocator, logger *zap.Logger) *Registrar {
	return &Registrar{portal: portal, flow: flow, reg: reg, locator: locator, logger: logger.Named("registrar")}
}

// IsReady reports whether a listed status marks the case as awaiting registration.
func (r *Registrar) IsReady(status string) bool {
	marker := strings.TrimSpace(r.reg.ReadyMarker)
	return marker != "" && strings.EqualFold(strings.TrimSpace(status), marker)
}

type registrationStep struct {
	name string
	run  func(ctx context.Context) error
}

// Register locates caseID and, when it is ready, fills the registration form.
// Unmet preconditions produce a Skipped result rather than an error. Completion
// means the form was submitted and given time to process; server-side
// persistence is not confirmed.
func (r *Registrar) Register(ctx context.Context, page Page, caseID string, payload RegistrationPayload) (*RegistrationResult, error) {
	logger := r.logger.With(zap.String("case", caseID))

	// LocateReadyRow
	found, err := r.locator.Search(ctx, page, caseID)
	if err != nil {
		return nil, err
	}
	if found == nil {
		return skipped(fmt.Sprintf("Processo %s não encontrado na lista.", caseID)), nil
	}
	if !r.IsReady(found.Record.Status) {
		logger.Info("Case not awaiting registration.", zap.String("status", found.Record.Status))
		return skipped(fmt.Sprintf("Processo %s está com status %q; cadastro não necessário.", caseID, found.Record.Status)), nil
	}

	sel := r.portal.Selectors
	origin := strings.TrimSpace(payload.Origin)
	if origin == "" {
		origin = r.reg.DefaultOrigin
	}

	steps := []registrationStep{
		{"OpenRegistrationForm", func(ctx context.Context) error {
			return r.openForm(ctx, page, found.Row)
		}},
		{"SelectArea", func(ctx context.Context) error {
			return r.selectField(ctx, page, "área", sel.Area, r.reg.Area)
		}},
		{"FillCoreFields", func(ctx context.Context) error {
			return r.autocompleteAll(ctx, page, []autocompleteField{
				{"cliente", sel.Client, r.reg.Client},
				{"advogado", sel.Attorney, r.reg.Attorney},
				{"origem", sel.Origin, origin},
				{"escritório", sel.Office, r.reg.Office},
			})
		}},
		{"FillMonetaryFields", func(ctx context.Context) error {
			return r.fillAmounts(ctx, page, []amountField{
				{"valor da causa", sel.ClaimValue, payload.ClaimValue},
				{"parcelas vencidas", sel.AccruedValue, payload.AccruedValue},
				{"parcelas vincendas", sel.FutureValue, payload.FutureValue},
			})
		}},
		{"AddInterestedParty", func(ctx context.Context) error {
			return r.addParty(ctx, page, "interessado", sel.AddInterested, sel.InterestedParty, r.reg.Interested)
		}},
		{"AddOpposingParty", func(ctx context.Context) error {
			return r.addParty(ctx, page, "parte contrária", sel.AddOpposing, sel.OpposingParty, r.reg.Opposing)
		}},
		{"SelectCaseDetails", func(ctx context.Context) error {
			if err := r.autocomplete(ctx, page, autocompleteField{"tipo de ação", sel.CaseType, r.reg.CaseType}); err != nil {
				return err
			}
			if err := r.selectField(ctx, page, "instância", sel.Instance, r.reg.Instance); err != nil {
				return err
			}
			if err := r.selectField(ctx, page, "fase", sel.Phase, r.reg.Phase); err != nil {
				return err
			}
			return r.autocomplete(ctx, page, autocompleteField{"vara", sel.Venue, r.reg.Venue})
		}},
		{"SelectWorkflowStage", func(ctx context.Context) error {
			return r.selectField(ctx, page, "etapa", sel.WorkflowStage, r.reg.WorkflowStage)
		}},
		{"Save", func(ctx context.Context) error {
			return r.save(ctx, page)
		}},
	}

	for i, step := range steps {
		logger.Debug(fmt.Sprintf("register: Step %d - %s", i+1, step.name))
		if err := step.run(ctx); err != nil {
			var unavailable *ControlUnavailableError
			if errors.As(err, &unavailable) && ctx.Err() == nil {
				logger.Warn("Registration skipped: form control unavailable.", zap.String("step", step.name), zap.Error(err))
				return skipped(fmt.Sprintf("Cadastro do processo %s interrompido: %s.", caseID, unavailable.Error())), nil
			}
			return nil, fmt.Errorf("registration step %s failed: %w", step.name, err)
		}
	}

	logger.Info("Registration submitted.")
	return &RegistrationResult{Status: StatusCompleted, Message: fmt.Sprintf("Processo %s cadastrado com sucesso.", caseID)}, nil
}

// find resolves a form control, reporting absence as ControlUnavailableError.
func (r *Registrar) find(ctx context.Context, page Page, control string, candidates []string) (string, error) {
	selector, err := firstVisible(ctx, page, control, candidates, r.flow.SelectorTimeout)
	if err != nil {
		var timeout *TimeoutError
		if errors.As(err, &timeout) {
			return "", &ControlUnavailableError{Control: control, Err: err}
		}
		return "", err
	}
	return selector, nil
}

func (r *Registrar) openForm(ctx context.Context, page Page, row browser.RowRef) error {
	const control = "botão de cadastro"
	candidates := r.portal.Selectors.RegisterButton
	clicked, err := pollUntil(ctx, r.flow.PollInterval, r.flow.SelectorTimeout, func(ctx context.Context) (bool, error) {
		for _, candidate := range candidates {
			ok, err := page.ClickInRow(ctx, row, candidate)
			if err != nil || ok {
				return ok, err
			}
		}
		return false, nil
	})
	if err != nil {
		return err
	}
	if !clicked {
		return &ControlUnavailableError{Control: control, Reason: fmt.Sprintf("ausente na linha %d da tabela", row.Index+1)}
	}
	return humanoid.Sleep(ctx, r.flow.FormSettle)
}

type autocompleteField struct {
	control    string
	candidates []string
	value      string
}

func (r *Registrar) autocomplete(ctx context.Context, page Page, f autocompleteField) error {
	if strings.TrimSpace(f.value) == "" {
		return nil
	}
	selector, err := r.find(ctx, page, f.control, f.candidates)
	if err != nil {
		return err
	}
	return FillAutocomplete(ctx, page, selector, f.value, r.flow.AutocompleteSettle)
}

func (r *Registrar) autocompleteAll(ctx context.Context, page Page, fields []autocompleteField) error {
	for _, f := range fields {
		if err := r.autocomplete(ctx, page, f); err != nil {
			return err
		}
	}
	return nil
}

// selectField picks label in a <select> and fires the change notification the
// form framework needs to notice the new value.
func (r *Registrar) selectField(ctx context.Context, page Page, control string, candidates []string, label string) error {
	if strings.TrimSpace(label) == "" {
		return nil
	}
	selector, err := r.find(ctx, page, control, candidates)
	if err != nil {
		return err
	}
	ok, err := page.SelectOption(ctx, selector, label)
	if err != nil {
		return err
	}
	if !ok {
		return &ControlUnavailableError{Control: control, Reason: fmt.Sprintf("opção %q inexistente", label)}
	}
	return page.DispatchChange(ctx, selector)
}

type amountField struct {
	control    string
	candidates []string
	raw        string
}

func (r *Registrar) fillAmounts(ctx context.Context, page Page, fields []amountField) error {
	for _, f := range fields {
		value := NormalizeAmount(f.raw)
		if value == "" {
			continue
		}
		selector, err := r.find(ctx, page, f.control, f.candidates)
		if err != nil {
			return err
		}
		if err := page.SetValue(ctx, selector, value); err != nil {
			return err
		}
		if err := page.DispatchChange(ctx, selector); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registrar) addParty(ctx context.Context, page Page, control string, addButton, input []string, name string) error {
	if strings.TrimSpace(name) == "" {
		return nil
	}
	button, err := r.find(ctx, page, "adicionar "+control, addButton)
	if err != nil {
		return err
	}
	if err := page.Click(ctx, button); err != nil {
		return err
	}
	return r.autocomplete(ctx, page, autocompleteField{control, input, name})
}

// save submits the form. No completion signal exists, so a fixed settle
// interval stands in for one.
func (r *Registrar) save(ctx context.Context, page Page) error {
	button, err := r.find(ctx, page, "salvar", r.portal.Selectors.SaveButton)
	if err != nil {
		return err
	}
	if err := page.Click(ctx, button); err != nil {
		return err
	}
	return humanoid.Sleep(ctx, r.flow.SaveSettle)
}
