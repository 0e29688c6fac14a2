package server

// Данный сервер просто объединяет специфичные HTTP сервера, отвечающие за обработку конкретных сущностей
type Server struct {
	ListingServer
	AnalyticsServer
	JobServer
}

func NewServer(
	listingServer ListingServer,
	analyticsServer AnalyticsServer,
	jobServer JobServer,
) Server {
	return Server{
		ListingServer:   listingServer,
		AnalyticsServer: analyticsServer,
		JobServer:       jobServer,
	}
}
