package dbtest

import (
	"context"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	neo4jtest "github.com/testcontainers/testcontainers-go/modules/neo4j"
)

// Neo4jImage is the image of the Neo4j container. Exports need the enterprise
// edition for multiple databases and node key constraints.
const Neo4jImage = "docker.io/neo4j:5-enterprise"

// neo4jHTTP is the port serving Neo4j Browser.
const neo4jHTTP = nat.Port("7474/tcp")

// SetupNeo4j starts a Neo4j container without authentication and returns a
// driver connected to it. The container and the driver are released during
// cleanup of t.
//
// Container-based tests are long-running: SetupNeo4j skips t under '-short' and
// marks it parallel. Use DatabaseName to isolate the databases of tests
// sharing a container.
func SetupNeo4j(t *testing.T) neo4j.DriverWithContext {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping container-based test in short mode...")
	}
	t.Parallel()

	ctx := context.Background()
	container, err := neo4jtest.Run(ctx, Neo4jImage, containerOptions(t,
		neo4jtest.WithoutAuthentication(),
		neo4jtest.WithAcceptCommercialLicenseAgreement(),
	)...)
	if err != nil {
		t.Fatal("Failed to run neo4j container:", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Errorf("Failed to terminate neo4j container %s: %v", container.GetContainerID(), err)
		}
	})

	boltURL, err := container.BoltUrl(ctx)
	if err != nil {
		t.Fatal("Failed to get bolt url:", err)
	}
	driver := connect(t, ctx, boltURL)

	if *Inspect {
		browser, err := container.PortEndpoint(ctx, neo4jHTTP, "http")
		if err != nil {
			t.Fatal("Failed to get http endpoint:", err)
		}
		// registered last, so it runs before the container terminates.
		t.Cleanup(func() {
			if !t.Failed() {
				return
			}
			// see <https://neo4j.com/docs/browser-manual/current/operations/browser-url-parameters>
			t.Logf("Browse the exported graphs at %s/browser?preselectAuthMethod=%s&dbms=%s (Ctrl+C to terminate)",
				browser, url.QueryEscape("[NO_AUTH]"), url.QueryEscape(boltURL))
			waitForInspection()
		})
	}
	return driver
}

// connect opens a driver to boltURL, closed during cleanup of t. Bolt may
// refuse connections for a short while after the container reports ready, so
// connectivity is verified a few times before failing t.
func connect(t *testing.T, ctx context.Context, boltURL string) neo4j.DriverWithContext {
	t.Helper()
	driver, err := neo4j.NewDriverWithContext(boltURL, neo4j.NoAuth())
	if err != nil {
		t.Fatal("Failed to open neo4j driver:", err)
	}
	t.Cleanup(func() {
		if err := driver.Close(ctx); err != nil {
			t.Error("Failed to close neo4j driver:", err)
		}
	})

	const attempts = 6
	const pause = 100 * time.Millisecond
	for i := 1; ; i++ {
		err = driver.VerifyConnectivity(ctx)
		if err == nil {
			return driver
		}
		if i == attempts {
			break
		}
		t.Logf("Neo4j is not reachable yet (attempt %d/%d): %v", i, attempts, err)
		time.Sleep(pause)
	}
	t.Fatal(fmt.Errorf("neo4j unreachable after %d attempts: %w", attempts, err))
	return nil
}
