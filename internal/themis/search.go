package themis

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/AdeilsonR/puppeteer-themis/internal/config"
)

// CaseLocator finds a case in the portal's case list.
type CaseLocator struct {
	portal config.PortalConfig
	flow   config.WorkflowConfig
	logger *zap.Logger
}

func NewCaseLocator(portal config.PortalConfig, flow config.WorkflowConfig, logger *zap.Logger) *CaseLocator {
	return &CaseLocator{portal: portal, flow: flow, logger: logger.Named("locator")}
}

// Search filters the case list by caseID and scans the rendered rows. A nil
// result with a nil error means the case is not listed.
func (l *CaseLocator) Search(ctx context.Context, page Page, caseID string) (*SearchResult, error) {
	sel := l.portal.Selectors
	logger := l.logger.With(zap.String("case", caseID))

	// OpenSearchSurface
	logger.Debug("search: Step 1 - opening the case list.")
	if err := page.Navigate(ctx, l.portal.URL(l.portal.SearchPath)); err != nil {
		return nil, fmt.Errorf("failed to open case list: %w", err)
	}
	if _, err := firstVisible(ctx, page, "case list", sel.SearchSurface, l.flow.SelectorTimeout); err != nil {
		return nil, err
	}

	// EnterFilter
	logger.Debug("search: Step 2 - adding the case number filter.")
	addFilter, err := firstVisible(ctx, page, "add filter control", sel.AddFilter, l.flow.SelectorTimeout)
	if err != nil {
		return nil, err
	}
	if err := page.Click(ctx, addFilter); err != nil {
		return nil, fmt.Errorf("failed to open filter: %w", err)
	}
	filterInput, err := firstVisible(ctx, page, "filter input", sel.FilterInput, l.flow.SelectorTimeout)
	if err != nil {
		return nil, err
	}
	// The field keeps the previous request's value in a shared browser.
	if err := page.Clear(ctx, filterInput); err != nil {
		return nil, fmt.Errorf("failed to clear filter: %w", err)
	}
	if err := page.Type(ctx, filterInput, caseID); err != nil {
		return nil, fmt.Errorf("failed to type case number: %w", err)
	}

	// TriggerSearch
	logger.Debug("search: Step 3 - triggering the search.")
	if button, err := firstVisible(ctx, page, "search button", sel.SearchButton, l.flow.SelectorTimeout); err == nil {
		if err := page.Click(ctx, button); err != nil {
			return nil, fmt.Errorf("failed to trigger search: %w", err)
		}
	} else {
		if ctx.Err() != nil {
			return nil, err
		}
		if err := page.PressKey(ctx, KeyEnter); err != nil {
			return nil, fmt.Errorf("failed to trigger search: %w", err)
		}
	}

	// WaitForRows
	single, err := pollUntil(ctx, l.flow.PollInterval, l.flow.RowsTimeout, func(ctx context.Context) (bool, error) {
		n, err := page.CountNodes(ctx, sel.ResultRows)
		return n == 1, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed while waiting for results: %w", err)
	}
	if !single {
		logger.Debug("search: result rows did not settle to one; scanning what is rendered.")
	}

	// ScanRows
	html, err := page.OuterHTML(ctx, sel.ResultTable)
	if err != nil {
		return nil, fmt.Errorf("failed to read result table: %w", err)
	}
	rows, err := ParseRows(html, sel.ResultTable, sel.ResultRows)
	if err != nil {
		return nil, err
	}
	result, ok := MatchRow(rows, caseID)
	if !ok {
		logger.Info("Case not found.", zap.Int("rows", len(rows)))
		return nil, nil
	}
	logger.Info("Case found.", zap.Int("row", result.Row.Index), zap.String("status", result.Record.Status))
	return result, nil
}
