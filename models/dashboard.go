package models

type DashboardStats struct {
	PlayersTotal         int `json:"players_total"`
	CompetitionsTotal    int `json:"competitions_total"`
	ActiveCompetitions   int `json:"active_competitions"`
	CompletedSessions    int `json:"completed_sessions"`
	RankingEntriesTotal  int `json:"ranking_entries_total"`
	SnapshotsTotal       int `json:"snapshots_total"`
	PendingAutomationRun int `json:"pending_automation_runs"`
}
