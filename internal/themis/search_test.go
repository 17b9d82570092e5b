package themis

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AdeilsonR/puppeteer-themis/internal/browser"
)

func TestCaseLocatorSearch(t *testing.T) {
	cfg := testConfig(t)
	sel := cfg.Portal.Selectors

	t.Run("should return the matching record", func(t *testing.T) {
		p := portalPage(t, cfg, resultTable(
			[]string{testCaseID, "Reclamação Trabalhista", "12/03/2024", "Aguardando cadastro"},
		))
		got, err := newTestLocator(t, cfg).Search(context.Background(), p, testCaseID)
		require.NoError(t, err)
		require.NotNil(t, got)

		assert.Equal(t, CaseRecord{
			Number:     testCaseID,
			Type:       "Reclamação Trabalhista",
			LastUpdate: "12/03/2024",
			Status:     "Aguardando cadastro",
		}, got.Record)
		assert.Equal(t, browser.RowRef{Table: sel.ResultTable, Rows: sel.ResultRows, Index: 0}, got.Row)

		actions := p.actionLog()
		assert.Contains(t, actions, "navigate "+cfg.Portal.URL(cfg.Portal.SearchPath))
		assert.Contains(t, actions, "click "+sel.AddFilter[0])
		assert.Contains(t, actions, "type "+sel.FilterInput[0]+" "+testCaseID)
		assert.Contains(t, actions, "click "+sel.SearchButton[0])
	})

	t.Run("should report not found without error", func(t *testing.T) {
		p := portalPage(t, cfg, resultTable(
			[]string{"1111111-11.2020.8.26.0001", "Cível", "01/01/2020", "Arquivado"},
		))
		got, err := newTestLocator(t, cfg).Search(context.Background(), p, testCaseID)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("should report not found for an empty table", func(t *testing.T) {
		p := portalPage(t, cfg, "")
		got, err := newTestLocator(t, cfg).Search(context.Background(), p, testCaseID)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("should clear the filter left by a previous search", func(t *testing.T) {
		p := portalPage(t, cfg, resultTable([]string{testCaseID, "T", "D", "S"}))
		p.values[sel.FilterInput[0]] = "stale-value"

		locator := newTestLocator(t, cfg)
		first, err := locator.Search(context.Background(), p, testCaseID)
		require.NoError(t, err)
		second, err := locator.Search(context.Background(), p, testCaseID)
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.Equal(t, testCaseID, p.values[sel.FilterInput[0]])
	})

	t.Run("should press Enter when there is no search button", func(t *testing.T) {
		table := resultTable([]string{testCaseID, "T", "D", "S"})
		p := portalPage(t, cfg, table)
		p.hide(sel.SearchButton...)
		p.onKey = func(p *fakePage, key string) {
			if key == KeyEnter {
				p.mu.Lock()
				p.html[sel.ResultTable] = table
				p.mu.Unlock()
			}
		}

		got, err := newTestLocator(t, cfg).Search(context.Background(), p, testCaseID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.True(t, p.hasAction("key "+KeyEnter))
	})

	t.Run("should time out when the case list never renders", func(t *testing.T) {
		p := portalPage(t, cfg, "")
		p.hide(sel.SearchSurface...)

		_, err := newTestLocator(t, cfg).Search(context.Background(), p, testCaseID)
		var timeout *TimeoutError
		require.True(t, errors.As(err, &timeout))
		assert.Equal(t, "case list", timeout.Step)
	})
}
