package trends

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

const (
	maxPageSize  = 50
	maxBatchSize = 50
)

var ErrNoVideos = errors.New("no ASMR videos found")

type CollectorConfig struct {
	APIKey       string
	Query        string
	Region       string
	LookbackDays int
	RequestRate  float64
	Logger       *slog.Logger
}

// Collector searches the YouTube Data API for recent high-view videos on a query.
type Collector struct {
	service *youtube.Service
	limiter *rate.Limiter
	config  CollectorConfig
	logger  *slog.Logger
	now     func() time.Time
}

func NewCollector(ctx context.Context, cfg CollectorConfig, opts ...option.ClientOption) (*Collector, error) {
	if cfg.APIKey != "" {
		opts = append([]option.ClientOption{option.WithAPIKey(cfg.APIKey)}, opts...)
	}
	service, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}

	if cfg.Query == "" {
		cfg.Query = "ASMR"
	}
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = 7
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limit := rate.Inf
	if cfg.RequestRate > 0 {
		limit = rate.Limit(cfg.RequestRate)
	}

	return &Collector{
		service: service,
		limiter: rate.NewLimiter(limit, 1),
		config:  cfg,
		logger:  logger,
		now:     time.Now,
	}, nil
}

// Collect returns up to maxResults ASMR-related videos published within the lookback window.
// An empty region uses the configured one.
func (c *Collector) Collect(ctx context.Context, region string, maxResults int) ([]Record, error) {
	if region == "" {
		region = c.config.Region
	}
	c.logger.Info("Searching for trending videos...", "query", c.config.Query, "region", region)
	ids, err := c.search(ctx, region, maxResults)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, ErrNoVideos
	}

	c.logger.Info("Fetching video details...", "count", len(ids))
	videos, err := c.details(ctx, ids)
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(videos))
	for _, v := range videos {
		record := toRecord(v)
		if !IsASMRRelated(record.Title, record.Description, record.Keywords, record.Hashtags) {
			continue
		}
		records = append(records, record)
		if len(records) >= maxResults {
			break
		}
	}

	if len(records) == 0 {
		return nil, ErrNoVideos
	}

	c.logger.Info("Collected trending videos", "count", len(records))
	return records, nil
}

func (c *Collector) search(ctx context.Context, region string, maxResults int) ([]string, error) {
	publishedAfter := c.now().UTC().AddDate(0, 0, -c.config.LookbackDays).Format(time.RFC3339)

	var ids []string
	pageToken := ""
	for len(ids) < maxResults {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		call := c.service.Search.List([]string{"snippet"}).
			Q(c.config.Query).
			Type("video").
			Order("viewCount").
			MaxResults(int64(min(maxPageSize, maxResults-len(ids)))).
			RelevanceLanguage("en").
			SafeSearch("strict").
			VideoDefinition("high").
			PublishedAfter(publishedAfter)
		if region != "" {
			call = call.RegionCode(region)
		}
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("search videos: %w", err)
		}

		for _, item := range resp.Items {
			if item.Id != nil && item.Id.VideoId != "" {
				ids = append(ids, item.Id.VideoId)
			}
		}

		pageToken = resp.NextPageToken
		if pageToken == "" || len(resp.Items) == 0 {
			break
		}
	}

	return ids, nil
}

func (c *Collector) details(ctx context.Context, ids []string) ([]*youtube.Video, error) {
	var videos []*youtube.Video
	for start := 0; start < len(ids); start += maxBatchSize {
		end := min(start+maxBatchSize, len(ids))

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		resp, err := c.service.Videos.List([]string{"snippet", "statistics"}).
			Id(ids[start:end]...).
			Context(ctx).
			Do()
		if err != nil {
			return nil, fmt.Errorf("list video details: %w", err)
		}
		videos = append(videos, resp.Items...)
	}
	return videos, nil
}

func toRecord(v *youtube.Video) Record {
	record := Record{VideoID: v.Id, Hashtags: []string{}, Keywords: []string{}}
	if v.Snippet != nil {
		record.Title = v.Snippet.Title
		record.Description = v.Snippet.Description
		record.Channel = v.Snippet.ChannelTitle
		record.PublishedAt = v.Snippet.PublishedAt
		if v.Snippet.Tags != nil {
			record.Keywords = v.Snippet.Tags
		}
	}
	if v.Statistics != nil {
		record.ViewCount = v.Statistics.ViewCount
	}
	record.Hashtags = ExtractHashtags(record.Title, record.Description)
	return record
}
