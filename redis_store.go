package main

import (
	"encoding/json"
	"fmt"
	"log"

	redis "github.com/redis/go-redis/v9"
)

func initRedis() {
	redisClient = redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if _, err := redisClient.Ping(ctx).Result(); err != nil {
		log.Printf("⚠️  Redis not available, using in-memory storage: %v", err)
		redisClient = nil
	} else {
		log.Println("✅ Redis connected successfully")
	}
}

func saveJobToRedis(job *Job) error {
	if redisClient == nil {
		return nil
	}
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return redisClient.Set(ctx, fmt.Sprintf("job:%s", job.ID), data, JobExpiration).Err()
}

func getJobFromRedis(id string) (*Job, error) {
	if redisClient == nil {
		return nil, nil
	}
	val, err := redisClient.Get(ctx, fmt.Sprintf("job:%s", id)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	var job Job
	if err := json.Unmarshal([]byte(val), &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func saveMetadataToRedis(id string, meta *Metadata) error {
	if redisClient == nil {
		return fmt.Errorf("redis unavailable")
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return redisClient.Set(ctx, fmt.Sprintf("meta:%s", id), data, cfg.MetadataTTL).Err()
}

func getMetadataFromRedis(id string) (*Metadata, error) {
	if redisClient == nil {
		return nil, nil
	}
	val, err := redisClient.Get(ctx, fmt.Sprintf("meta:%s", id)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	var meta Metadata
	if err := json.Unmarshal([]byte(val), &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}
