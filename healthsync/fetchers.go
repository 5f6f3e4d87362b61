package healthsync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tranquilae/Tranquilae-sub003/models"
)

const maxFetchBody = 4 << 20

// googleFitFetcher pulls daily step buckets from the Fitness aggregate API.
type googleFitFetcher struct{}

func (f *googleFitFetcher) Fetch(ctx context.Context, client *http.Client, since time.Time) ([]models.HealthDataPoint, error) {
	const endpoint = "https://www.googleapis.com/fitness/v1/users/me/dataset:aggregate"

	end := time.Now().UTC()

	body := fmt.Sprintf(`{
		"aggregateBy": [{"dataTypeName": "com.google.step_count.delta"}],
		"bucketByTime": {"durationMillis": 86400000},
		"startTimeMillis": %d,
		"endTimeMillis": %d
	}`, since.UnixMilli(), end.UnixMilli())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(body))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google fit aggregate returned %d", resp.StatusCode)
	}

	var parsed struct {
		Bucket []struct {
			StartTimeMillis string `json:"startTimeMillis"`
			Dataset         []struct {
				Point []struct {
					Value []struct {
						IntVal int64 `json:"intVal"`
					} `json:"value"`
				} `json:"point"`
			} `json:"dataset"`
		} `json:"bucket"`
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxFetchBody)).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to parse google fit response: %w", err)
	}

	var points []models.HealthDataPoint

	for _, bucket := range parsed.Bucket {
		millis, err := strconv.ParseInt(bucket.StartTimeMillis, 10, 64)
		if err != nil {
			continue
		}

		var steps int64

		for _, ds := range bucket.Dataset {
			for _, p := range ds.Point {
				for _, v := range p.Value {
					steps += v.IntVal
				}
			}
		}

		if steps == 0 {
			continue
		}

		points = append(points, models.HealthDataPoint{
			DataType:   models.DataSteps,
			Value:      float64(steps),
			Unit:       "count",
			RecordedAt: time.UnixMilli(millis).UTC(),
		})
	}

	return points, nil
}

// fitbitFetcher pulls the daily step time series.
type fitbitFetcher struct{}

func (f *fitbitFetcher) Fetch(ctx context.Context, client *http.Client, since time.Time) ([]models.HealthDataPoint, error) {
	start := since.UTC().Format("2006-01-02")
	end := time.Now().UTC().Format("2006-01-02")

	endpoint := fmt.Sprintf("https://api.fitbit.com/1/user/-/activities/steps/date/%s/%s.json", start, end)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fitbit steps endpoint returned %d", resp.StatusCode)
	}

	var parsed struct {
		ActivitiesSteps []struct {
			DateTime string `json:"dateTime"`
			Value    string `json:"value"`
		} `json:"activities-steps"`
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxFetchBody)).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to parse fitbit response: %w", err)
	}

	var points []models.HealthDataPoint

	for _, entry := range parsed.ActivitiesSteps {
		day, err := time.Parse("2006-01-02", entry.DateTime)
		if err != nil {
			continue
		}

		value, err := strconv.ParseFloat(entry.Value, 64)
		if err != nil || value == 0 {
			continue
		}

		points = append(points, models.HealthDataPoint{
			DataType:   models.DataSteps,
			Value:      value,
			Unit:       "count",
			RecordedAt: day.UTC(),
		})
	}

	return points, nil
}
