package models

import "time"

// TicketCounts groups tickets by outcome. Accepted counts every ticket a
// worker has taken, whether it ended completed, skipped or is still invited.
type TicketCounts struct {
	Accepted  int `json:"accepted"`
	Served    int `json:"served"`
	Skipped   int `json:"skipped"`
	Cancelled int `json:"cancelled"`
}

func (c TicketCounts) Add(other TicketCounts) TicketCounts {
	return TicketCounts{
		Accepted:  c.Accepted + other.Accepted,
		Served:    c.Served + other.Served,
		Skipped:   c.Skipped + other.Skipped,
		Cancelled: c.Cancelled + other.Cancelled,
	}
}

type CategoryStatistic struct {
	CategoryID      int64        `json:"category_id"`
	Name            string       `json:"category_name"`
	Waiting         int          `json:"waiting"`
	Today           TicketCounts `json:"today"`
	AcceptedAllTime int          `json:"accepted_all_time"`
	ServedAllTime   int          `json:"served_all_time"`
}

type Statistics struct {
	Day        string              `json:"today"`
	General    CategoryStatistic   `json:"general"`
	Categories []CategoryStatistic `json:"categories"`
}

// CategoryWorkers lists the workers of one category. ID zero holds workers
// without a category.
type CategoryWorkers struct {
	ID      int64    `json:"id"`
	Name    string   `json:"name"`
	Workers []Worker `json:"workers"`
}

type AdminDashboard struct {
	Waiting       int               `json:"clients_in_queue"`
	AcceptedToday int               `json:"accepted_today"`
	ServedToday   int               `json:"served_today"`
	Categories    []CategoryWorkers `json:"categories"`
}

type WorkerReport struct {
	Worker        Worker       `json:"worker"`
	Since         time.Time    `json:"since"`
	Counts        TicketCounts `json:"counts"`
	AverageRating *float64     `json:"average_rating"`
	Tickets       []Ticket     `json:"tickets"`
}
