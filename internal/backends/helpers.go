package backends

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strconv"

	"optcache/internal/backends/ddb"
	"optcache/internal/backends/memory"
	"optcache/internal/backends/supabase"
	"optcache/internal/ports"
	"optcache/internal/pub"
	"optcache/internal/types"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	redisbackend "optcache/internal/backends/redis"
)

const (
	RowBackendEnvKey      = "ROW_BACKEND"
	SnapshotBackendEnvKey = "SNAPSHOT_BACKEND"
	BackendSupabase       = "supabase"
	BackendMemory         = "memory"
	BackendDDB            = "ddb"
	BackendRedis          = "redis"
	BackendNone           = "none"

	SupabaseURLKey = "SUPABASE_URL"
	SupabaseKeyKey = "SUPABASE_KEY"

	DDBEndpointKey = "DDB_ENDPOINT"
	DDBTableKey    = "DDB_TABLE"

	RevalidateTopicKey = "REVALIDATE_TOPIC_ARN"
	SNSEndpointKey     = "SNS_ENDPOINT"

	RedisHost  = "REDIS_HOST"
	RedisPort  = "REDIS_PORT"
	RedisUser  = "REDIS_USER"
	RedisPass  = "REDIS_PASS"
	RedisTLS   = "REDIS_SSL"
	RedisDBNum = "REDIS_DB_NUM"
)
const AmazonRootCA1PEM = `-----BEGIN CERTIFICATE-----
MIIDQTCCAimgAwIBAgITBmyfz5m/jAo54vB4ikPmljZbyjANBgkqhkiG9w0BAQsF
ADA5MQswCQYDVQQGEwJVUzEPMA0GA1UEChMGQW1hem9uMRkwFwYDVQQDExBBbWF6
b24gUm9vdCBDQSAxMB4XDTE1MDUyNjAwMDAwMFoXDTM4MDExNzAwMDAwMFowOTEL
MAkGA1UEBhMCVVMxDzANBgNVBAoTBkFtYXpvbjEZMBcGA1UEAxMQQW1hem9uIFJv
b3QgQ0EgMTCCASIwDQYJKoZIhvcNAQEBBQADggEPADCCAQoCggEBALJ4gHHKeNXj
ca9HgFB0fW7Y14h29Jlo91ghYPl0hAEvrAIthtOgQ3pOsqTQNroBvo3bSMgHFzZM
9O6II8c+6zf1tRn4SWiw3te5djgdYZ6k/oI2peVKVuRF4fn9tBb6dNqcmzU5L/qw
IFAGbHrQgLKm+a/sRxmPUDgH3KKHOVj4utWp+UhnMJbulHheb4mjUcAwhmahRWa6
VOujw5H5SNz/0egwLX0tdHA114gk957EWW67c4cX8jJGKLhD+rcdqsq08p8kDi1L
93FcXmn/6pUCyziKrlA4b9v7LWIbxcceVOF34GfID5yHI9Y/QCB/IIDEgEw+OyQm
jgSubJrIqg0CAwEAAaNCMEAwDwYDVR0TAQH/BAUwAwEB/zAOBgNVHQ8BAf8EBAMC
AYYwHQYDVR0OBBYEFIQYzIU07LwMlJQuCFmcx7IQTgoIMA0GCSqGSIb3DQEBCwUA
A4IBAQCY8jdaQZChGsV2USggNiMOruYou6r4lK5IpDB/G/wkjUu0yKGX9rbxenDI
U5PMCCjjmCXPI6T53iHTfIUJrU6adTrCC2qJeHZERxhlbI1Bjjt/msv0tadQ1wUs
N+gDS63pYaACbvXy8MWy7Vu33PqUXHeeE6V/Uq2V8viTO96LXFvKWlJbYK8U90vv
o/ufQJVtMVT8QtPHRh8jrdkPSHCa2XV4cdFyQzR1bldZwgJcJmApzyMZFo6IQ6XU
5MsI+yMRQ+hDKXJioaldXgjUkK642M4UwtBV8ob2xJNDd2ZhwLnoQdeXeGADbkpy
rqXRfboQnoZsG4q5WTP468SQvvG5
-----END CERTIFICATE-----`

// RowBackendFromEnv constructs the RowStore named by ROW_BACKEND.
// "supabase" (the default) needs SUPABASE_URL and SUPABASE_KEY; "memory" starts empty.
func RowBackendFromEnv() (rowStore ports.RowStore, err error) {
	backend := os.Getenv(RowBackendEnvKey)
	switch backend {
	case BackendMemory:
		rowStore = memory.NewRowStore()

	case BackendSupabase:
		fallthrough
	case "":
		url, key := os.Getenv(SupabaseURLKey), os.Getenv(SupabaseKeyKey)
		if url == "" || key == "" {
			return nil, types.Err(types.ErrInvalidBackend, nil, "%s and %s are required", SupabaseURLKey, SupabaseKeyKey)
		}
		rowStore, err = supabase.NewRowStoreFromURL(url, key)

	default:
		return nil, types.Err(types.ErrInvalidBackend, nil, "unknown %s %q", RowBackendEnvKey, backend)
	}
	return
}

// SnapshotBackendFromEnv constructs the SnapshotStore named by SNAPSHOT_BACKEND.
// Supported backends are "redis", "ddb" and "memory"; "none" disables persistence and yields nil.
// Default to BackendMemory if unspecified.
func SnapshotBackendFromEnv() (snapStore ports.SnapshotStore, err error) {
	backend := os.Getenv(SnapshotBackendEnvKey)
	switch backend {
	case BackendRedis:
		var redisClient *redis.Client
		redisClient, err = redisClientFromEnv()
		if err != nil {
			return nil, err
		}
		snapStore = redisbackend.NewSnapshotStore(redisClient)

	case BackendDDB:
		var ddbClient *dynamodb.Client
		ddbClient, err = ddbClientFromEnv()
		if err != nil {
			return nil, err
		}
		table := getenv(DDBTableKey, "optcache_snapshots")
		snapStore, err = ddb.NewSnapshotStore(context.Background(), table, ddbClient)

	case BackendNone:
		return nil, nil

	case BackendMemory:
		fallthrough
	case "":
		snapStore = memory.NewSnapshotStore()

	default:
		return nil, types.Err(types.ErrInvalidBackend, nil, "unknown %s %q", SnapshotBackendEnvKey, backend)
	}
	return
}

// PublisherFromEnv returns an SNS publisher for REVALIDATE_TOPIC_ARN, or nil when no topic is set.
func PublisherFromEnv() (ports.Publisher, error) {
	topic := os.Getenv(RevalidateTopicKey)
	if topic == "" {
		log.Debug("no revalidation topic configured")
		return nil, nil
	}
	awsCfg, err := config.LoadDefaultConfig(context.Background())
	if err != nil {
		return nil, err
	}
	cli := sns.NewFromConfig(awsCfg, func(o *sns.Options) {
		if ep := os.Getenv(SNSEndpointKey); ep != "" {
			// local stacks only
			o.BaseEndpoint = aws.String(ep)
			o.Region = getenv("AWS_REGION", "us-east-1")
			o.Credentials = localCredentials()
		}
	})
	return pub.NewSNS(cli, topic), nil
}

// ddbClientFromEnv creates a DynamoDB client from environment variables, if any.
func ddbClientFromEnv() (*dynamodb.Client, error) {
	var ddbEndpoint *string
	de := os.Getenv(DDBEndpointKey)
	if de != "" {
		ddbEndpoint = aws.String(de)
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background())

	if err != nil {
		return nil, err
	}

	ddbClient := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if ddbEndpoint != nil {
			// This is used for testing only locally
			o.BaseEndpoint = ddbEndpoint
			o.Region = getenv("AWS_REGION", "us-east-1")
			o.Credentials = localCredentials()
		}
	})
	return ddbClient, nil
}

// redisClientFromEnv creates a Redis client from environment variables, if any.
func redisClientFromEnv() (*redis.Client, error) {
	host := getenv(RedisHost, "localhost")
	port := getenv(RedisPort, "6379")
	user := os.Getenv(RedisUser)
	pass := os.Getenv(RedisPass)
	tlsEnabled := parseBoolean(getenv(RedisTLS, "false"))
	dbNumStr := getenv(RedisDBNum, "0")
	dbNum, err := strconv.Atoi(dbNumStr)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis DB number: %w", err)
	}

	var tlsConfig *tls.Config
	if tlsEnabled {
		// Create a CA certificate pool and add our CA certificate
		caCerts := x509.NewCertPool()
		if !caCerts.AppendCertsFromPEM([]byte(AmazonRootCA1PEM)) {
			return nil, fmt.Errorf("failed to retrieve CA certificate")
		}
		tlsConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
			RootCAs:    caCerts,
		}
	}

	redisConfig := redis.Options{
		Addr:      fmt.Sprintf("%s:%s", host, port),
		Username:  user,
		Password:  pass,
		DB:        dbNum,
		TLSConfig: tlsConfig,
	}
	redisClient := redis.NewClient(&redisConfig)
	_, err = redisClient.Ping(context.Background()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}
	return redisClient, nil
}

func localCredentials() aws.CredentialsProvider {
	return credentials.NewStaticCredentialsProvider(
		getenv("AWS_ACCESS_KEY_ID", "x"),
		getenv("AWS_SECRET_ACCESS_KEY", "x"),
		"",
	)
}

// getenv retrieves the value of the environment variable named by the key.
func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func parseBoolean(s string) bool {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false
	}
	return b
}
