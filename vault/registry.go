package vault

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"time"
)

const registryBase = "https://api.wordpress.org"

// DownloadFromRegistry fetches a plugin or theme archive from the remote
// registry into the vault. Used by background download jobs.
func (s *Store) DownloadFromRegistry(ctx context.Context, slug, itemType string) error {
	infoURL := fmt.Sprintf("%s/plugins/info/1.2/?action=plugin_information&request[slug]=%s", registryBase, url.QueryEscape(slug))
	if itemType == TypeTheme {
		infoURL = fmt.Sprintf("%s/themes/info/1.2/?action=theme_information&request[slug]=%s", registryBase, url.QueryEscape(slug))
	}

	infoCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(infoCtx, http.MethodGet, infoURL, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("registry info request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("registry info for %s: status %d", slug, resp.StatusCode)
	}

	var info struct {
		DownloadLink string `json:"download_link"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return fmt.Errorf("decode registry info: %w", err)
	}
	if info.DownloadLink == "" {
		return fmt.Errorf("no download link for %s", slug)
	}

	dlCtx, cancelDL := context.WithTimeout(ctx, 30*time.Second)
	defer cancelDL()
	dlReq, err := http.NewRequestWithContext(dlCtx, http.MethodGet, info.DownloadLink, nil)
	if err != nil {
		return err
	}
	dlResp, err := http.DefaultClient.Do(dlReq)
	if err != nil {
		return fmt.Errorf("registry download: %w", err)
	}
	defer dlResp.Body.Close()
	if dlResp.StatusCode != http.StatusOK {
		return fmt.Errorf("registry download for %s: status %d", slug, dlResp.StatusCode)
	}

	return s.Save(path.Base(info.DownloadLink), dlResp.Body)
}
