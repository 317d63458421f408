package cmd

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

// backendCmd backend 서브커맨드
var backendCmd = &cobra.Command{
	Use:   "backend",
	Short: "Runtime 서버 관리",
	Long: `Runtime 서버를 실행합니다 (Fusion Engine, Position Manager, Risk Scheduler, API 서버).

Examples:
  go run ./cmd/quant backend start    # Runtime 서버 시작
  go run ./cmd/quant backend stop     # Runtime 서버 종료`,
}

// backendStartCmd 서버 시작
var backendStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Runtime 서버 시작",
	Long:  `Runtime 서버를 시작합니다. Ctrl+C로 종료할 수 있습니다.`,
	RunE:  runBackendStart,
}

// backendStopCmd 서버 종료
var backendStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Runtime 서버 종료",
	Long:  `실행 중인 Runtime 서버를 종료합니다.`,
	RunE:  runBackendStop,
}

func init() {
	backendCmd.AddCommand(backendStartCmd)
	backendCmd.AddCommand(backendStopCmd)
}

func runBackendStart(cmd *cobra.Command, args []string) error {
	// 기존 프로세스 종료
	killExistingBackend()

	fmt.Println("🚀 Runtime 서버 시작...")

	runtimeCmd := exec.Command("go", "run", "./cmd/runtime")
	runtimeCmd.Stdout = os.Stdout
	runtimeCmd.Stderr = os.Stderr
	runtimeCmd.Env = os.Environ()
	if cfgFile != "" {
		runtimeCmd.Env = append(runtimeCmd.Env, "QUANT_CONFIG_FILE="+cfgFile)
	}

	if err := runtimeCmd.Start(); err != nil {
		return fmt.Errorf("failed to start runtime: %w", err)
	}

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	exited := make(chan error, 1)
	go func() { exited <- runtimeCmd.Wait() }()

	fmt.Println("✅ Runtime 서버 실행 중")
	fmt.Println("   - Position Manager 일일 손실 점검")
	fmt.Println("   - Risk Scheduler 포트폴리오 점검")
	fmt.Println("   - API 서버 (포트: 8099)")
	fmt.Println("종료하려면 Ctrl+C를 누르세요")

	select {
	case err := <-exited:
		return fmt.Errorf("runtime exited: %w", err)
	case <-sigCh:
	}
	fmt.Println("\n🛑 종료 신호 수신, 서버 종료 중...")

	// SIGTERM 으로 graceful shutdown 유도
	if err := runtimeCmd.Process.Signal(syscall.SIGTERM); err != nil {
		fmt.Printf("Runtime 종료 실패: %v\n", err)
	}
	<-exited

	fmt.Println("✅ Runtime 서버 종료 완료")
	return nil
}

func runBackendStop(cmd *cobra.Command, args []string) error {
	fmt.Println("🛑 Runtime 서버 종료 중...")

	// 기존 프로세스 종료
	killExistingBackend()

	fmt.Println("✅ Runtime 서버 종료 완료")
	return nil
}

// killExistingBackend 기존 런타임 프로세스 종료
func killExistingBackend() {
	// pgrep으로 기존 프로세스 찾기
	patterns := []string{"cmd/runtime", "quant backend start"}

	for _, pattern := range patterns {
		cmd := exec.Command("pgrep", "-f", pattern)
		var out bytes.Buffer
		cmd.Stdout = &out

		if err := cmd.Run(); err != nil {
			continue // 프로세스 없음
		}

		pids := strings.TrimSpace(out.String())
		if pids == "" {
			continue
		}

		// 현재 프로세스 PID 제외
		currentPID := os.Getpid()
		for _, pidStr := range strings.Split(pids, "\n") {
			pid, err := strconv.Atoi(strings.TrimSpace(pidStr))
			if err != nil {
				continue
			}

			// 현재 프로세스와 부모 프로세스 제외
			if pid == currentPID || pid == os.Getppid() {
				continue
			}

			// SIGTERM: runtime 이 포지션 모니터와 발행 큐를 정리하고 종료
			if proc, err := os.FindProcess(pid); err == nil {
				fmt.Printf("기존 런타임 프로세스 종료 (PID: %d)\n", pid)
				_ = proc.Signal(syscall.SIGTERM)
			}
		}
	}
}
