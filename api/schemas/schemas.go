package schemas

// -- Request Schemas --

// SearchRequest is the body of POST /buscar-processo.
type SearchRequest struct {
	CaseNumber string `json:"numeroProcesso"`
}

// RegisterRequest is the body of POST /cadastrar-processo. Amounts are
// accepted in Brazilian notation ("R$ 1.234,56").
type RegisterRequest struct {
	CaseNumber   string `json:"processo"`
	Origin       string `json:"origem,omitempty"`
	ClaimValue   string `json:"valor_causa,omitempty"`
	AccruedValue string `json:"valor_vencidas,omitempty"`
	FutureValue  string `json:"valor_vincendas,omitempty"`
}

// -- Response Schemas --

// CaseRecord is one row of the portal's case list.
type CaseRecord struct {
	Number     string `json:"numero"`
	Type       string `json:"tipo"`
	LastUpdate string `json:"ultimaAtualizacao"`
	Status     string `json:"status"`
}

// SearchResponse carries either a *CaseRecord or the no-result marker string
// in Result.
type SearchResponse struct {
	CaseNumber string      `json:"numeroProcesso"`
	Result     interface{} `json:"resultado"`
}

// RegisterResponse reports a registration that completed or was skipped.
type RegisterResponse struct {
	CaseNumber string `json:"processo"`
	Status     string `json:"status"`
	Message    string `json:"mensagem"`
}

// ErrorResponse is the body of every 4xx and 5xx response.
type ErrorResponse struct {
	Error      string `json:"erro"`
	Kind       string `json:"tipo,omitempty"`
	Diagnostic string `json:"diagnostico,omitempty"`
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status  string `json:"status"`
	Browser string `json:"browser"`
}
