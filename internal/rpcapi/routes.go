package rpcapi

import (
	"github.com/gin-gonic/gin"

	"cadence/internal/cadenceerr"
	"cadence/internal/daemon"
	"cadence/internal/queue"
)

// registrationTable is the full family -> verb -> handler map. Each entry
// is a thin adapter: decode the request body (if any), call the matching
// Controller method, return its result. No business logic lives here.
func registrationTable() map[string]map[string]handlerFunc {
	return map[string]map[string]handlerFunc{
		"daemon": {
			"ping": func(ctrl *daemon.Controller, c *gin.Context) (interface{}, error) {
				msg, err := ctrl.Ping(c.Request.Context())
				return gin.H{"message": msg}, err
			},
			"shutdown": func(ctrl *daemon.Controller, c *gin.Context) (interface{}, error) {
				return nil, ctrl.Shutdown(c.Request.Context())
			},
		},
		"library": {
			"rescan":    func(ctrl *daemon.Controller, c *gin.Context) (interface{}, error) { return ctrl.LibraryRescan(c.Request.Context()) },
			"analyze":   func(ctrl *daemon.Controller, c *gin.Context) (interface{}, error) { return ctrl.LibraryAnalyze(c.Request.Context()) },
			"recluster": func(ctrl *daemon.Controller, c *gin.Context) (interface{}, error) {
				var req struct {
					Seed uint64 `json:"seed"`
				}
				_ = c.ShouldBindJSON(&req)
				return ctrl.LibraryRecluster(c.Request.Context(), req.Seed)
			},
			"status": func(ctrl *daemon.Controller, c *gin.Context) (interface{}, error) {
				return ctrl.LibraryJobStatus(c.Request.Context()), nil
			},
			"stats":   func(ctrl *daemon.Controller, c *gin.Context) (interface{}, error) { return ctrl.LibraryStats(c.Request.Context()) },
			"artists": func(ctrl *daemon.Controller, c *gin.Context) (interface{}, error) { return ctrl.LibraryArtists(c.Request.Context()) },
			"albums":  func(ctrl *daemon.Controller, c *gin.Context) (interface{}, error) { return ctrl.LibraryAlbums(c.Request.Context()) },
			"songs":   func(ctrl *daemon.Controller, c *gin.Context) (interface{}, error) { return ctrl.LibrarySongs(c.Request.Context()) },
		},
		"state": {
			"audio": func(ctrl *daemon.Controller, c *gin.Context) (interface{}, error) { return ctrl.StateAudio(c.Request.Context()) },
			"queue": func(ctrl *daemon.Controller, c *gin.Context) (interface{}, error) { return ctrl.StateQueue(c.Request.Context()) },
		},
		"current": {
			"song": func(ctrl *daemon.Controller, c *gin.Context) (interface{}, error) { return ctrl.CurrentSong(c.Request.Context()) },
		},
		"search": {
			"query": func(ctrl *daemon.Controller, c *gin.Context) (interface{}, error) {
				var req struct {
					Query string `json:"query"`
					Limit int    `json:"limit"`
				}
				if err := c.ShouldBindJSON(&req); err != nil {
					return nil, cadenceerr.InvalidArgument(err.Error())
				}
				return ctrl.Search(c.Request.Context(), req.Query, req.Limit)
			},
		},
		"queue": {
			"add_song": func(ctrl *daemon.Controller, c *gin.Context) (interface{}, error) {
				var req struct {
					SongID int64 `json:"song_id"`
				}
				if err := c.ShouldBindJSON(&req); err != nil {
					return nil, cadenceerr.InvalidArgument(err.Error())
				}
				return nil, ctrl.QueueAddSong(c.Request.Context(), req.SongID)
			},
			"add_many": func(ctrl *daemon.Controller, c *gin.Context) (interface{}, error) {
				var req struct {
					SongIDs []int64 `json:"song_ids"`
				}
				if err := c.ShouldBindJSON(&req); err != nil {
					return nil, cadenceerr.InvalidArgument(err.Error())
				}
				return nil, ctrl.QueueAddMany(c.Request.Context(), req.SongIDs)
			},
			"remove_range": func(ctrl *daemon.Controller, c *gin.Context) (interface{}, error) {
				var req struct {
					Start int `json:"start"`
					End   int `json:"end"`
				}
				if err := c.ShouldBindJSON(&req); err != nil {
					return nil, cadenceerr.InvalidArgument(err.Error())
				}
				return nil, ctrl.QueueRemoveRange(c.Request.Context(), req.Start, req.End)
			},
			"play_at": func(ctrl *daemon.Controller, c *gin.Context) (interface{}, error) {
				var req struct {
					Index int `json:"index"`
				}
				if err := c.ShouldBindJSON(&req); err != nil {
					return nil, cadenceerr.InvalidArgument(err.Error())
				}
				return nil, ctrl.QueuePlayAt(c.Request.Context(), req.Index)
			},
		},
		"playback": {
			"pause":    func(ctrl *daemon.Controller, c *gin.Context) (interface{}, error) { return nil, ctrl.PlaybackPause(c.Request.Context()) },
			"resume":   func(ctrl *daemon.Controller, c *gin.Context) (interface{}, error) { return nil, ctrl.PlaybackResume(c.Request.Context()) },
			"stop":     func(ctrl *daemon.Controller, c *gin.Context) (interface{}, error) { return nil, ctrl.PlaybackStop(c.Request.Context()) },
			"next":     func(ctrl *daemon.Controller, c *gin.Context) (interface{}, error) { return nil, ctrl.PlaybackNext(c.Request.Context()) },
			"previous": func(ctrl *daemon.Controller, c *gin.Context) (interface{}, error) { return nil, ctrl.PlaybackPrevious(c.Request.Context()) },
			"seek": func(ctrl *daemon.Controller, c *gin.Context) (interface{}, error) {
				var req struct {
					PositionSec float64 `json:"position_seconds"`
				}
				if err := c.ShouldBindJSON(&req); err != nil {
					return nil, cadenceerr.InvalidArgument(err.Error())
				}
				return nil, ctrl.PlaybackSeek(c.Request.Context(), req.PositionSec)
			},
			"set_volume": func(ctrl *daemon.Controller, c *gin.Context) (interface{}, error) {
				var req struct {
					Volume float64 `json:"volume"`
				}
				if err := c.ShouldBindJSON(&req); err != nil {
					return nil, cadenceerr.InvalidArgument(err.Error())
				}
				return nil, ctrl.PlaybackSetVolume(c.Request.Context(), req.Volume)
			},
			"set_repeat_mode": func(ctrl *daemon.Controller, c *gin.Context) (interface{}, error) {
				var req struct {
					Mode string `json:"mode"`
				}
				if err := c.ShouldBindJSON(&req); err != nil {
					return nil, cadenceerr.InvalidArgument(err.Error())
				}
				mode, err := parseRepeatMode(req.Mode)
				if err != nil {
					return nil, err
				}
				return nil, ctrl.PlaybackSetRepeatMode(c.Request.Context(), mode)
			},
		},
		"rand": {
			"shuffle": func(ctrl *daemon.Controller, c *gin.Context) (interface{}, error) {
				var req struct {
					Seed int64 `json:"seed"`
				}
				_ = c.ShouldBindJSON(&req)
				return nil, ctrl.RandShuffle(c.Request.Context(), req.Seed)
			},
		},
		"playlist": {
			"new": func(ctrl *daemon.Controller, c *gin.Context) (interface{}, error) {
				var req struct {
					Name string `json:"name"`
				}
				if err := c.ShouldBindJSON(&req); err != nil {
					return nil, cadenceerr.InvalidArgument(err.Error())
				}
				p, existed, err := ctrl.PlaylistNew(c.Request.Context(), req.Name)
				if err != nil {
					return nil, err
				}
				return gin.H{"playlist": p, "already_existed": existed}, nil
			},
			"get": func(ctrl *daemon.Controller, c *gin.Context) (interface{}, error) {
				var req struct {
					ID int64 `json:"id"`
				}
				if err := c.ShouldBindJSON(&req); err != nil {
					return nil, cadenceerr.InvalidArgument(err.Error())
				}
				return ctrl.PlaylistGet(c.Request.Context(), req.ID)
			},
			"add_song": func(ctrl *daemon.Controller, c *gin.Context) (interface{}, error) {
				var req struct {
					PlaylistID int64 `json:"playlist_id"`
					SongID     int64 `json:"song_id"`
				}
				if err := c.ShouldBindJSON(&req); err != nil {
					return nil, cadenceerr.InvalidArgument(err.Error())
				}
				return nil, ctrl.PlaylistAddSong(c.Request.Context(), req.PlaylistID, req.SongID)
			},
			"dynamic_new": func(ctrl *daemon.Controller, c *gin.Context) (interface{}, error) {
				var req struct {
					Name  string `json:"name"`
					Query string `json:"query"`
				}
				if err := c.ShouldBindJSON(&req); err != nil {
					return nil, cadenceerr.InvalidArgument(err.Error())
				}
				return ctrl.DynamicPlaylistNew(c.Request.Context(), req.Name, req.Query)
			},
			"dynamic_evaluate": func(ctrl *daemon.Controller, c *gin.Context) (interface{}, error) {
				var req struct {
					ID int64 `json:"id"`
				}
				if err := c.ShouldBindJSON(&req); err != nil {
					return nil, cadenceerr.InvalidArgument(err.Error())
				}
				ids, err := ctrl.DynamicPlaylistEvaluate(c.Request.Context(), req.ID)
				if err != nil {
					return nil, err
				}
				return gin.H{"song_ids": ids}, nil
			},
		},
		"collection": {
			"list": func(ctrl *daemon.Controller, c *gin.Context) (interface{}, error) { return ctrl.CollectionList(c.Request.Context()) },
		},
		"radio": {
			"get_similar": func(ctrl *daemon.Controller, c *gin.Context) (interface{}, error) {
				var req struct {
					SeedSongIDs []int64 `json:"seed_song_ids"`
					N           int     `json:"n"`
				}
				if err := c.ShouldBindJSON(&req); err != nil {
					return nil, cadenceerr.InvalidArgument(err.Error())
				}
				ids, err := ctrl.RadioGetSimilar(c.Request.Context(), req.SeedSongIDs, req.N)
				if err != nil {
					return nil, err
				}
				return gin.H{"song_ids": ids}, nil
			},
		},
	}
}

func parseRepeatMode(s string) (queue.RepeatMode, error) {
	switch s {
	case "none", "":
		return queue.RepeatNone, nil
	case "one":
		return queue.RepeatOne, nil
	case "all":
		return queue.RepeatAll, nil
	default:
		return queue.RepeatNone, cadenceerr.InvalidArgument("unknown repeat mode " + s)
	}
}
