//go:build ignore

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"time"
)

// Seeds a running server with drivers and open ride requests so bidding
// can be exercised by hand. Run with: go run scripts/seed_data.go

const baseURL = "http://localhost:8080"

// Downtown San Diego
const (
	baseLat = 32.7157
	baseLng = -117.1611
)

var rideTypes = []string{"standard", "standard", "premium", "wheelchair", "pet_friendly"}

func main() {
	rand.Seed(time.Now().UnixNano())

	log.Println("Placing 20 drivers on the map...")
	driverIDs := make([]string, 0, 20)
	for i := 0; i < 20; i++ {
		id := fmt.Sprintf("00000000-0000-0000-0000-%012d", i+1)
		driverIDs = append(driverIDs, id)

		body, _ := json.Marshal(map[string]float64{
			"lat": jitter(baseLat),
			"lng": jitter(baseLng),
		})
		resp, err := http.Post(baseURL+"/v1/drivers/"+id+"/location", "application/json", bytes.NewBuffer(body))
		if err != nil {
			log.Fatalf("driver location update failed: %v", err)
		}
		resp.Body.Close()
	}

	log.Println("Creating 10 ride requests...")
	requestIDs := make([]string, 0, 10)
	for i := 0; i < 10; i++ {
		customerID := fmt.Sprintf("10000000-0000-0000-0000-%012d", i+1)
		body, _ := json.Marshal(map[string]interface{}{
			"customer_id": customerID,
			"ride_type":   rideTypes[rand.Intn(len(rideTypes))],
			"pickup": map[string]interface{}{
				"lat": jitter(baseLat), "lng": jitter(baseLng), "address": "Pickup corner",
			},
			"destination": map[string]interface{}{
				"lat": jitter(baseLat + 0.05), "lng": jitter(baseLng + 0.05), "address": "Dropoff corner",
			},
		})

		resp, err := http.Post(baseURL+"/v1/ride-requests", "application/json", bytes.NewBuffer(body))
		if err != nil {
			log.Fatalf("ride request creation failed: %v", err)
		}
		var created struct {
			ID string `json:"id"`
		}
		json.NewDecoder(resp.Body).Decode(&created)
		resp.Body.Close()
		if created.ID != "" {
			requestIDs = append(requestIDs, created.ID)
		}
	}

	log.Println("Submitting competing bids...")
	bids := 0
	for _, reqID := range requestIDs {
		for i := 0; i < 2+rand.Intn(3); i++ {
			driverID := driverIDs[rand.Intn(len(driverIDs))]
			body, _ := json.Marshal(map[string]interface{}{
				"driver_id":                 driverID,
				"bid_amount":                8 + rand.Float64()*12,
				"estimated_arrival_minutes": 2 + rand.Intn(10),
				"vehicle_info": map[string]string{
					"make": "Toyota", "model": "Prius", "color": "blue", "plate_number": fmt.Sprintf("SD%04d", rand.Intn(10000)),
				},
			})
			resp, err := http.Post(baseURL+"/v1/ride-requests/"+reqID+"/bids", "application/json", bytes.NewBuffer(body))
			if err != nil {
				log.Printf("bid submission failed: %v", err)
				continue
			}
			resp.Body.Close()
			bids++
		}
	}

	log.Printf("Done: %d drivers, %d requests, %d bids", len(driverIDs), len(requestIDs), bids)
}

func jitter(v float64) float64 {
	return v + (rand.Float64()-0.5)*0.04
}
