package service

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"ai-research-be/internal/constant"
	"ai-research-be/internal/dto"
	"ai-research-be/internal/entity"
	"ai-research-be/internal/pkg/logger"
	"ai-research-be/internal/repository/unitofwork"
)

const ingestionFetchTimeout = 30 * time.Second

type IIngestionService interface {
	Start(ctx context.Context, pollInterval time.Duration)
	PollOnce(ctx context.Context) error
}

// ingestionService walks the active live sources on a timer, pulls fresh
// content from each endpoint and hands the items to the embedding consumer
// through the message bus. One broken source never stalls the sweep.
type ingestionService struct {
	uowFactory       unitofwork.RepositoryFactory
	publisherService IPublisherService
	httpClient       *http.Client
	logger           logger.ILogger
}

func NewIngestionService(
	uowFactory unitofwork.RepositoryFactory,
	publisherService IPublisherService,
	sysLogger logger.ILogger,
) IIngestionService {
	return &ingestionService{
		uowFactory:       uowFactory,
		publisherService: publisherService,
		httpClient:       &http.Client{Timeout: ingestionFetchTimeout},
		logger:           sysLogger,
	}
}

func (s *ingestionService) Start(ctx context.Context, pollInterval time.Duration) {
	go func() {
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.PollOnce(ctx); err != nil {
					s.logger.Error("ingestion", "poll sweep failed", map[string]interface{}{"error": err.Error()})
				}
			}
		}
	}()
}

func (s *ingestionService) PollOnce(ctx context.Context) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	sources, err := uow.LiveSourceRepository().FindAll(ctx)
	if err != nil {
		return err
	}

	now := time.Now()
	for _, source := range sources {
		// error-status sources stay in the sweep so a transient outage
		// heals on the next successful fetch; paused and stopped do not
		if source.Status != constant.LiveSourceStatusActive && source.Status != constant.LiveSourceStatusError {
			continue
		}
		if !s.due(source, now) {
			continue
		}
		s.pollSource(ctx, source)
	}
	return nil
}

func (s *ingestionService) due(source *entity.LiveSource, now time.Time) bool {
	if source.Stats.LastIngestion == nil {
		return true
	}
	interval := time.Duration(source.IngestionIntervalSeconds) * time.Second
	return now.Sub(*source.Stats.LastIngestion) >= interval
}

func (s *ingestionService) pollSource(ctx context.Context, source *entity.LiveSource) {
	items, err := s.fetch(ctx, source)

	now := time.Now()
	source.Stats.LastIngestion = &now
	if err != nil {
		source.Stats.FailureCount++
		source.Status = constant.LiveSourceStatusError
		s.logger.Warn("ingestion", "source fetch failed", map[string]interface{}{
			"sourceId": source.SourceId, "type": source.Type, "error": err.Error(),
		})
	} else {
		source.Stats.SuccessCount++
		source.Status = constant.LiveSourceStatusActive
		published := 0
		for _, item := range items {
			if strings.TrimSpace(item) == "" {
				continue
			}
			if err := s.publishEntry(ctx, source, item); err != nil {
				s.logger.Warn("ingestion", "entry publish failed", map[string]interface{}{
					"sourceId": source.SourceId, "error": err.Error(),
				})
				continue
			}
			published++
		}
		source.Stats.TotalEntries += published
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.LiveSourceRepository().Update(ctx, source); err != nil {
		s.logger.Warn("ingestion", "stats update failed", map[string]interface{}{
			"sourceId": source.SourceId, "error": err.Error(),
		})
	}
}

func (s *ingestionService) publishEntry(ctx context.Context, source *entity.LiveSource, item string) error {
	msg := dto.LiveEntryMessage{
		SourceId: source.SourceId,
		Payload:  item,
		Metadata: map[string]interface{}{
			"sessionId":  source.SessionId,
			"sourceName": source.Name,
			"sourceType": source.Type,
			"ingestedAt": time.Now().Format(time.RFC3339),
		},
		MaxEntries: source.MaxEntries,
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return s.publisherService.Publish(ctx, payload)
}

func (s *ingestionService) fetch(ctx context.Context, source *entity.LiveSource) ([]string, error) {
	body, err := s.get(ctx, source.Url)
	if err != nil {
		return nil, err
	}

	switch source.Type {
	case constant.LiveSourceTypeFeed:
		return parseFeed(body)
	case constant.LiveSourceTypeAPI:
		return parseAPIResponse(body)
	case constant.LiveSourceTypePage:
		return []string{string(body)}, nil
	default:
		return nil, fmt.Errorf("unknown live source type %q", source.Type)
	}
}

func (s *ingestionService) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("endpoint returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// rssFeed covers both RSS 2.0 and Atom documents; unknown elements are
// ignored by the xml decoder.
type rssFeed struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
	Entries []atomEntry `xml:"entry"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
}

type atomEntry struct {
	Title   string `xml:"title"`
	Summary string `xml:"summary"`
	Content string `xml:"content"`
	Updated string `xml:"updated"`
}

func parseFeed(body []byte) ([]string, error) {
	var feed rssFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("feed parse failed: %w", err)
	}

	items := make([]string, 0, len(feed.Channel.Items)+len(feed.Entries))
	for _, item := range feed.Channel.Items {
		text := strings.TrimSpace(item.Title + "\n" + item.Description)
		if item.PubDate != "" {
			text += "\nPublished: " + item.PubDate
		}
		items = append(items, text)
	}
	for _, entry := range feed.Entries {
		content := entry.Content
		if content == "" {
			content = entry.Summary
		}
		text := strings.TrimSpace(entry.Title + "\n" + content)
		if entry.Updated != "" {
			text += "\nUpdated: " + entry.Updated
		}
		items = append(items, text)
	}

	if len(items) == 0 {
		return nil, fmt.Errorf("feed contained no items")
	}
	return items, nil
}

// parseAPIResponse flattens a JSON endpoint into one text item per
// top-level array element, or a single item for an object payload.
func parseAPIResponse(body []byte) ([]string, error) {
	var asArray []map[string]interface{}
	if err := json.Unmarshal(body, &asArray); err == nil {
		items := make([]string, 0, len(asArray))
		for _, obj := range asArray {
			items = append(items, flattenJSON(obj))
		}
		return items, nil
	}

	var asObject map[string]interface{}
	if err := json.Unmarshal(body, &asObject); err != nil {
		return nil, fmt.Errorf("api response is neither array nor object: %w", err)
	}
	return []string{flattenJSON(asObject)}, nil
}

func flattenJSON(obj map[string]interface{}) string {
	keys := make([]string, 0, len(obj))
	for key := range obj {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, key := range keys {
		b.WriteString(fmt.Sprintf("%s: %v\n", key, obj[key]))
	}
	return strings.TrimSpace(b.String())
}
