package geolocation

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"googlemaps.github.io/maps"
)

// SignalScanner lists the radio signals visible to the host.
type SignalScanner interface {
	WiFiAccessPoints(ctx context.Context) ([]maps.WiFiAccessPoint, error)
	CellTowers(ctx context.Context) ([]maps.CellTower, error)
}

// CommandScanner scans with NetworkManager (nmcli) and ModemManager (mmcli).
type CommandScanner struct {
	ModemIndex int
}

// WiFiAccessPoints retrieves nearby WiFi access points using nmcli.
func (c CommandScanner) WiFiAccessPoints(ctx context.Context) ([]maps.WiFiAccessPoint, error) {
	// Verify nmcli is available
	if _, err := exec.LookPath("nmcli"); err != nil {
		return nil, fmt.Errorf("nmcli not found: %w", err)
	}

	cmd := exec.CommandContext(ctx, "nmcli", "-t", "-f", "BSSID,SIGNAL", "dev", "wifi", "list")
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("failed to run nmcli: %w", err)
	}
	return parseNmcli(string(output))
}

// CellTowers retrieves the serving cell tower using mmcli.
func (c CommandScanner) CellTowers(ctx context.Context) ([]maps.CellTower, error) {
	// Verify mmcli is available
	if _, err := exec.LookPath("mmcli"); err != nil {
		return nil, fmt.Errorf("mmcli not found: %w", err)
	}

	cmd := exec.CommandContext(ctx, "mmcli", "-m", strconv.Itoa(c.ModemIndex), "--output-keyvalue")
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("failed to run mmcli for modem %d: %w", c.ModemIndex, err)
	}
	return parseMmcli(string(output))
}

// parseNmcli parses terse nmcli output. nmcli escapes the colons inside the
// BSSID, so the signal is whatever follows the last unescaped colon.
func parseNmcli(output string) ([]maps.WiFiAccessPoint, error) {
	var wifiAPs []maps.WiFiAccessPoint
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		sep := strings.LastIndex(line, ":")
		if sep <= 0 || line[sep-1] == '\\' {
			continue
		}
		macAddress := strings.ReplaceAll(line[:sep], `\:`, ":")
		if !isValidMAC(macAddress) {
			continue
		}
		signal, err := strconv.Atoi(strings.TrimSpace(line[sep+1:]))
		if err != nil {
			continue
		}
		wifiAPs = append(wifiAPs, maps.WiFiAccessPoint{
			MACAddress:     macAddress,
			SignalStrength: float64(signal),
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan nmcli output: %w", err)
	}
	return wifiAPs, nil
}

// parseMmcli extracts the serving cell from mmcli key-value output.
func parseMmcli(output string) ([]maps.CellTower, error) {
	var cellTower maps.CellTower
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case "modem.3gpp.operator-code":
			if len(value) < 5 {
				continue
			}
			mcc, err := strconv.Atoi(value[:3])
			if err != nil {
				continue
			}
			mnc, err := strconv.Atoi(value[3:])
			if err != nil {
				continue
			}
			cellTower.MobileCountryCode = mcc
			cellTower.MobileNetworkCode = mnc
		case "modem.3gpp.location-area-code", "modem.3gpp.tracking-area-code":
			lac, err := strconv.ParseInt(value, 16, 32)
			if err != nil || lac == 0 {
				continue
			}
			cellTower.LocationAreaCode = int(lac)
		case "modem.3gpp.cell-id":
			cid, err := strconv.ParseInt(value, 16, 64)
			if err != nil {
				continue
			}
			cellTower.CellID = int(cid)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan mmcli output: %w", err)
	}

	// Validate cell tower data
	if cellTower.MobileCountryCode == 0 || cellTower.CellID == 0 {
		return nil, errors.New("incomplete cell tower data")
	}
	return []maps.CellTower{cellTower}, nil
}

// isValidMAC checks if the MAC address is in a valid format (e.g., "00:14:22:01:23:45").
func isValidMAC(mac string) bool {
	parts := strings.Split(mac, ":")
	if len(parts) != 6 {
		return false
	}
	for _, part := range parts {
		if len(part) != 2 {
			return false
		}
		if _, err := strconv.ParseUint(part, 16, 8); err != nil {
			return false
		}
	}
	return true
}
