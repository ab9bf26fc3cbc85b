package dto

// Estruturas cruas da resposta do endpoint /fixtures da API-Football (api-sports v3)

type FixturesResponse struct {
	Response []Match `json:"response"`
}

type Match struct {
	Fixture Fixture `json:"fixture"`
	League  League  `json:"league"`
	Teams   Teams   `json:"teams"`
	Goals   Goals   `json:"goals"`
	Score   Score   `json:"score"`
}

type Fixture struct {
	ID     int    `json:"id"`
	Status Status `json:"status"`
}

type Status struct {
	Short   string `json:"short"` // "NS", "1H", "HT", "2H", "ET", "P", "FT", "AET", "PEN", ...
	Elapsed *int   `json:"elapsed"`
}

type League struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Country string `json:"country"`
}

type Teams struct {
	Home Team `json:"home"`
	Away Team `json:"away"`
}

type Team struct {
	Name string `json:"name"`
}

// Placar corrente; a API envia null antes do primeiro gol
type Goals struct {
	Home *int `json:"home"`
	Away *int `json:"away"`
}

// Placares por período; halftime é usado na resolução fora de ciclo
type Score struct {
	Halftime Goals `json:"halftime"`
	Fulltime Goals `json:"fulltime"`
}
